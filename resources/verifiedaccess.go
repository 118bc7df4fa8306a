package resources

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"ec2emulator/state"
)

// VerifiedAccessInstanceView is the public shape of a Verified Access instance.
type VerifiedAccessInstanceView struct {
	VerifiedAccessInstanceID string `xml:"verifiedAccessInstanceId"`
	Description              string `xml:"description,omitempty"`
	CreationTime             string `xml:"creationTime"`
	LastUpdatedTime          string `xml:"lastUpdatedTime"`
	FipsEnabled              bool   `xml:"fipsEnabled"`
	Tagged
}

// VerifiedAccessInstance is a stored Verified Access instance.
type VerifiedAccessInstance struct {
	VerifiedAccessInstanceView
	Dependents
}

// NewVerifiedAccessInstance returns an instance tracking its groups.
func NewVerifiedAccessInstance(view VerifiedAccessInstanceView) *VerifiedAccessInstance {
	return &VerifiedAccessInstance{
		VerifiedAccessInstanceView: view,
		Dependents:                 NewDependents(state.KindVerifiedAccessGroup),
	}
}

func (v *VerifiedAccessInstance) ID() string { return v.VerifiedAccessInstanceID }
func (v *VerifiedAccessInstance) ResourceType() string {
	return string(types.ResourceTypeVerifiedAccessInstance)
}

// View returns a detached copy of the public fields.
func (v *VerifiedAccessInstance) View() VerifiedAccessInstanceView {
	out := v.VerifiedAccessInstanceView
	out.Tags = out.Tags.Clone()
	return out
}

// VerifiedAccessGroupView is the public shape of a Verified Access group.
type VerifiedAccessGroupView struct {
	VerifiedAccessGroupID    string `xml:"verifiedAccessGroupId"`
	VerifiedAccessInstanceID string `xml:"verifiedAccessInstanceId"`
	VerifiedAccessGroupArn   string `xml:"verifiedAccessGroupArn"`
	Description              string `xml:"description,omitempty"`
	Owner                    string `xml:"owner"`
	CreationTime             string `xml:"creationTime"`
	LastUpdatedTime          string `xml:"lastUpdatedTime"`
	Tagged
}

// VerifiedAccessGroup is a stored Verified Access group.
type VerifiedAccessGroup struct {
	VerifiedAccessGroupView
	Dependents
	PolicyDocument string
	PolicyEnabled  bool
}

// NewVerifiedAccessGroup returns a group tracking its endpoints.
func NewVerifiedAccessGroup(view VerifiedAccessGroupView) *VerifiedAccessGroup {
	return &VerifiedAccessGroup{
		VerifiedAccessGroupView: view,
		Dependents:              NewDependents(state.KindVerifiedAccessEndpoint),
	}
}

func (g *VerifiedAccessGroup) ID() string { return g.VerifiedAccessGroupID }
func (g *VerifiedAccessGroup) ResourceType() string {
	return string(types.ResourceTypeVerifiedAccessGroup)
}

// View returns a detached copy of the public fields.
func (g *VerifiedAccessGroup) View() VerifiedAccessGroupView {
	out := g.VerifiedAccessGroupView
	out.Tags = out.Tags.Clone()
	return out
}

// VerifiedAccessEndpointView is the public shape of a Verified Access endpoint.
type VerifiedAccessEndpointView struct {
	VerifiedAccessEndpointID string   `xml:"verifiedAccessEndpointId"`
	VerifiedAccessInstanceID string   `xml:"verifiedAccessInstanceId"`
	VerifiedAccessGroupID    string   `xml:"verifiedAccessGroupId"`
	ApplicationDomain        string   `xml:"applicationDomain,omitempty"`
	EndpointType             string   `xml:"endpointType"`
	AttachmentType           string   `xml:"attachmentType"`
	DomainCertificateArn     string   `xml:"domainCertificateArn,omitempty"`
	EndpointDomain           string   `xml:"endpointDomain"`
	SecurityGroupIDs         []string `xml:"securityGroupIdSet>item,omitempty"`
	Status                   struct {
		Code string `xml:"code"`
	} `xml:"status"`
	Description     string `xml:"description,omitempty"`
	CreationTime    string `xml:"creationTime"`
	LastUpdatedTime string `xml:"lastUpdatedTime"`
	Tagged
}

// VerifiedAccessEndpoint is a stored Verified Access endpoint.
type VerifiedAccessEndpoint struct {
	VerifiedAccessEndpointView
}

func (e *VerifiedAccessEndpoint) ID() string { return e.VerifiedAccessEndpointID }
func (e *VerifiedAccessEndpoint) ResourceType() string {
	return string(types.ResourceTypeVerifiedAccessEndpoint)
}

// View returns a detached copy of the public fields.
func (e *VerifiedAccessEndpoint) View() VerifiedAccessEndpointView {
	out := e.VerifiedAccessEndpointView
	out.Tags = out.Tags.Clone()
	out.SecurityGroupIDs = append([]string(nil), e.SecurityGroupIDs...)
	return out
}
