package backends

import (
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// Auxiliary store names.
const (
	auxCreditDefaults   = "default-credit-specifications"
	auxMetadataDefaults = "instance-metadata-defaults"
	auxSpotDatafeed     = "spot-datafeed-subscription"
)

const (
	noPreference        = "no-preference"
	cpuCreditsStandard  = "standard"
	cpuCreditsUnlimited = "unlimited"
)

var burstableFamilies = []string{"t2", "t3", "t3a", "t4g"}

// AccountDefaultsBackend implements the account level settings kept in the auxiliary store.
type AccountDefaultsBackend struct {
	*base
}

func familyOf(instanceType string) string {
	family, _, _ := strings.Cut(instanceType, ".")
	return family
}

// defaultCPUCredits returns the account default credit option of the type's family.
func defaultCPUCredits(s *state.Store, instanceType string) string {
	family := familyOf(instanceType)
	if v, ok := s.Aux(auxCreditDefaults)[family].(string); ok {
		return v
	}
	if family == "t2" {
		return cpuCreditsStandard
	}
	return cpuCreditsUnlimited
}

// metadataDefaults returns the metadata options new instances start with.
func metadataDefaults(s *state.Store) resources.MetadataOptions {
	opts := resources.MetadataOptions{
		State:                   string(types.InstanceMetadataOptionsStateApplied),
		HTTPTokens:              string(types.HttpTokensStateOptional),
		HTTPPutResponseHopLimit: 1,
		HTTPEndpoint:            string(types.InstanceMetadataEndpointStateEnabled),
		HTTPProtocolIpv6:        string(types.InstanceMetadataProtocolStateDisabled),
		InstanceMetadataTags:    string(types.InstanceMetadataTagsStateDisabled),
	}
	aux := s.Aux(auxMetadataDefaults)
	if v, ok := aux["HttpTokens"].(string); ok {
		opts.HTTPTokens = v
	}
	if v, ok := aux["HttpPutResponseHopLimit"].(int); ok {
		opts.HTTPPutResponseHopLimit = v
	}
	if v, ok := aux["HttpEndpoint"].(string); ok {
		opts.HTTPEndpoint = v
	}
	if v, ok := aux["InstanceMetadataTags"].(string); ok {
		opts.InstanceMetadataTags = v
	}
	return opts
}

// applyMetadataOptions overlays the metadata parameters present in p on opts.
func applyMetadataOptions(opts resources.MetadataOptions, p params.Params) (resources.MetadataOptions, error) {
	checks := []struct {
		name    string
		target  *string
		allowed []string
	}{
		{"HttpTokens", &opts.HTTPTokens, valuesOf(types.HttpTokensState("").Values())},
		{"HttpEndpoint", &opts.HTTPEndpoint, valuesOf(types.InstanceMetadataEndpointState("").Values())},
		{"HttpProtocolIpv6", &opts.HTTPProtocolIpv6, valuesOf(types.InstanceMetadataProtocolState("").Values())},
		{"InstanceMetadataTags", &opts.InstanceMetadataTags, valuesOf(types.InstanceMetadataTagsState("").Values())},
	}
	for _, c := range checks {
		if !p.Has(c.name) {
			continue
		}
		if err := oneOf(c.name, p.String(c.name), c.allowed...); err != nil {
			return opts, err
		}
		*c.target = p.String(c.name)
	}
	if p.Has("HttpPutResponseHopLimit") {
		hops, err := p.Int("HttpPutResponseHopLimit", 1)
		if err != nil {
			return opts, err
		}
		if hops < 1 || hops > 64 {
			return opts, errors.InvalidValue("HttpPutResponseHopLimit", p.String("HttpPutResponseHopLimit"),
				"The hop limit must be between 1 and 64.")
		}
		opts.HTTPPutResponseHopLimit = hops
	}
	return opts, nil
}

// InstanceFamilyCreditSpecification is the default credit option of one family.
type InstanceFamilyCreditSpecification struct {
	InstanceFamily string `xml:"instanceFamily"`
	CPUCredits     string `xml:"cpuCredits"`
}

// DefaultCreditSpecificationResponse carries one family default.
type DefaultCreditSpecificationResponse struct {
	Meta
	Specification InstanceFamilyCreditSpecification `xml:"instanceFamilyCreditSpecification"`
}

func requireFamily(p params.Params) (string, error) {
	if err := p.Require("InstanceFamily"); err != nil {
		return "", err
	}
	family := p.String("InstanceFamily")
	return family, oneOf("InstanceFamily", family, burstableFamilies...)
}

// GetDefaultCreditSpecification reads the account default for a burstable family.
func (b *AccountDefaultsBackend) GetDefaultCreditSpecification(p params.Params) (*DefaultCreditSpecificationResponse, error) {
	family, err := requireFamily(p)
	if err != nil {
		return nil, err
	}
	return &DefaultCreditSpecificationResponse{Specification: InstanceFamilyCreditSpecification{
		InstanceFamily: family,
		CPUCredits:     defaultCPUCredits(b.store, family+".micro"),
	}}, nil
}

// ModifyDefaultCreditSpecification sets the account default for a burstable family.
func (b *AccountDefaultsBackend) ModifyDefaultCreditSpecification(p params.Params) (*DefaultCreditSpecificationResponse, error) {
	family, err := requireFamily(p)
	if err != nil {
		return nil, err
	}
	if err := p.Require("CpuCredits"); err != nil {
		return nil, err
	}
	credits := p.String("CpuCredits")
	if err := oneOf("CpuCredits", credits, cpuCreditsStandard, cpuCreditsUnlimited); err != nil {
		return nil, err
	}
	b.store.Aux(auxCreditDefaults)[family] = credits
	b.log.Debug("Default credit specification modified",
		zap.String("operation", "ModifyDefaultCreditSpecification"),
		zap.String("family", family),
		zap.String("cpu_credits", credits),
	)
	return &DefaultCreditSpecificationResponse{Specification: InstanceFamilyCreditSpecification{
		InstanceFamily: family,
		CPUCredits:     credits,
	}}, nil
}

// MetadataDefaults is the account level metadata configuration. Unset values are omitted.
type MetadataDefaults struct {
	HTTPTokens              string `xml:"httpTokens,omitempty"`
	HTTPPutResponseHopLimit int    `xml:"httpPutResponseHopLimit,omitempty"`
	HTTPEndpoint            string `xml:"httpEndpoint,omitempty"`
	InstanceMetadataTags    string `xml:"instanceMetadataTags,omitempty"`
}

// GetInstanceMetadataDefaultsResponse carries the account metadata defaults.
type GetInstanceMetadataDefaultsResponse struct {
	Meta
	AccountLevel MetadataDefaults `xml:"accountLevel"`
}

// GetInstanceMetadataDefaults reads the account metadata defaults.
func (b *AccountDefaultsBackend) GetInstanceMetadataDefaults(params.Params) (*GetInstanceMetadataDefaultsResponse, error) {
	aux := b.store.Aux(auxMetadataDefaults)
	resp := &GetInstanceMetadataDefaultsResponse{}
	resp.AccountLevel.HTTPTokens, _ = aux["HttpTokens"].(string)
	resp.AccountLevel.HTTPPutResponseHopLimit, _ = aux["HttpPutResponseHopLimit"].(int)
	resp.AccountLevel.HTTPEndpoint, _ = aux["HttpEndpoint"].(string)
	resp.AccountLevel.InstanceMetadataTags, _ = aux["InstanceMetadataTags"].(string)
	return resp, nil
}

// ModifyInstanceMetadataDefaults sets or clears ("no-preference") account metadata defaults.
func (b *AccountDefaultsBackend) ModifyInstanceMetadataDefaults(p params.Params) (*ReturnResponse, error) {
	updates := map[string]any{}
	choices := map[string][]string{
		"HttpTokens":           {string(types.MetadataDefaultHttpTokensStateOptional), string(types.MetadataDefaultHttpTokensStateRequired)},
		"HttpEndpoint":         {string(types.DefaultInstanceMetadataEndpointStateEnabled), string(types.DefaultInstanceMetadataEndpointStateDisabled)},
		"InstanceMetadataTags": {string(types.DefaultInstanceMetadataTagsStateEnabled), string(types.DefaultInstanceMetadataTagsStateDisabled)},
	}
	for name, allowed := range choices {
		if !p.Has(name) {
			continue
		}
		if err := oneOf(name, p.String(name), append(allowed, noPreference)...); err != nil {
			return nil, err
		}
		updates[name] = p.String(name)
	}
	if p.Has("HttpPutResponseHopLimit") {
		hops, err := p.Int("HttpPutResponseHopLimit", -1)
		if err != nil {
			return nil, err
		}
		switch {
		case hops == -1:
			updates["HttpPutResponseHopLimit"] = noPreference
		case hops >= 1 && hops <= 64:
			updates["HttpPutResponseHopLimit"] = hops
		default:
			return nil, errors.InvalidValue("HttpPutResponseHopLimit", strconv.Itoa(hops),
				"The hop limit must be -1 or between 1 and 64.")
		}
	}
	if len(updates) == 0 {
		return nil, errors.MissingParameter("HttpTokens")
	}

	aux := b.store.Aux(auxMetadataDefaults)
	for name, v := range updates {
		if v == noPreference {
			delete(aux, name)
			continue
		}
		aux[name] = v
	}
	b.log.Debug("Instance metadata defaults modified", zap.String("operation", "ModifyInstanceMetadataDefaults"))
	return ok(), nil
}

// SpotDatafeedSubscription is the account spot usage data feed.
type SpotDatafeedSubscription struct {
	OwnerID string `xml:"ownerId"`
	Bucket  string `xml:"bucket"`
	Prefix  string `xml:"prefix,omitempty"`
	State   string `xml:"state"`
}

// SpotDatafeedSubscriptionResponse carries the subscription.
type SpotDatafeedSubscriptionResponse struct {
	Meta
	Subscription SpotDatafeedSubscription `xml:"spotDatafeedSubscription"`
}

func (b *AccountDefaultsBackend) subscription() (SpotDatafeedSubscription, bool) {
	aux := b.store.Aux(auxSpotDatafeed)
	bucket, found := aux["bucket"].(string)
	if !found {
		return SpotDatafeedSubscription{}, false
	}
	prefix, _ := aux["prefix"].(string)
	return SpotDatafeedSubscription{
		OwnerID: b.settings.AccountID,
		Bucket:  bucket,
		Prefix:  prefix,
		State:   string(types.DatafeedSubscriptionStateActive),
	}, true
}

// CreateSpotDatafeedSubscription creates or replaces the data feed subscription.
func (b *AccountDefaultsBackend) CreateSpotDatafeedSubscription(p params.Params) (*SpotDatafeedSubscriptionResponse, error) {
	if err := p.Require("Bucket"); err != nil {
		return nil, err
	}
	aux := b.store.Aux(auxSpotDatafeed)
	aux["bucket"] = p.String("Bucket")
	aux["prefix"] = p.String("Prefix")
	sub, _ := b.subscription()
	b.log.Debug("Spot datafeed subscription created",
		zap.String("operation", "CreateSpotDatafeedSubscription"),
		zap.String("bucket", sub.Bucket),
	)
	return &SpotDatafeedSubscriptionResponse{Subscription: sub}, nil
}

// DescribeSpotDatafeedSubscription returns the subscription.
func (b *AccountDefaultsBackend) DescribeSpotDatafeedSubscription(params.Params) (*SpotDatafeedSubscriptionResponse, error) {
	sub, found := b.subscription()
	if !found {
		return nil, errors.API("InvalidSpotDatafeed.NotFound", "The spot datafeed subscription does not exist")
	}
	return &SpotDatafeedSubscriptionResponse{Subscription: sub}, nil
}

// DeleteSpotDatafeedSubscription removes the subscription.
func (b *AccountDefaultsBackend) DeleteSpotDatafeedSubscription(params.Params) (*ReturnResponse, error) {
	if _, found := b.subscription(); !found {
		return nil, errors.API("InvalidSpotDatafeed.NotFound", "The spot datafeed subscription does not exist")
	}
	aux := b.store.Aux(auxSpotDatafeed)
	delete(aux, "bucket")
	delete(aux, "prefix")
	b.log.Debug("Spot datafeed subscription deleted", zap.String("operation", "DeleteSpotDatafeedSubscription"))
	return ok(), nil
}
