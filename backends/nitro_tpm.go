package backends

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

const tpmSupportV20 = "v2.0"

// NitroTpmBackend serves the endorsement keys of instances launched from NitroTPM images.
type NitroTpmBackend struct {
	*base
}

// GetInstanceTpmEkPubResponse carries one endorsement key.
type GetInstanceTpmEkPubResponse struct {
	Meta
	resources.NitroTpmKeyView
}

// GetInstanceTpmEkPub returns the public endorsement key of an instance. The key is
// generated on first use and stays the same until the instance is terminated.
func (b *NitroTpmBackend) GetInstanceTpmEkPub(p params.Params) (*GetInstanceTpmEkPubResponse, error) {
	if err := p.Require("InstanceId", "KeyType", "KeyFormat"); err != nil {
		return nil, err
	}
	keyType, keyFormat := p.String("KeyType"), p.String("KeyFormat")
	if err := oneOf("KeyType", keyType, valuesOf(types.EkPubKeyType("").Values())...); err != nil {
		return nil, err
	}
	if err := oneOf("KeyFormat", keyFormat, valuesOf(types.EkPubKeyFormat("").Values())...); err != nil {
		return nil, err
	}
	inst, err := lookup[*resources.Instance](b.store, state.KindInstance, p.String("InstanceId"))
	if err != nil {
		return nil, err
	}
	image, found := state.Get[*resources.Image](b.store, state.KindImage, inst.ImageID)
	if !found || image.TpmSupport != tpmSupportV20 {
		return nil, errors.API(errors.ErrUnsupportedOperation,
			"The instance %s was not launched from an AMI with NitroTPM support.", inst.InstanceID)
	}

	id := resources.NitroTpmKeyID(inst.InstanceID, keyType, keyFormat)
	if key, found := state.Get[*resources.NitroTpmKey](b.store, state.KindNitroTpmKey, id); found {
		return &GetInstanceTpmEkPubResponse{NitroTpmKeyView: key.View()}, nil
	}
	value, err := endorsementKey(types.EkPubKeyType(keyType), types.EkPubKeyFormat(keyFormat))
	if err != nil {
		return nil, errors.New(errors.ErrInternal, "failed to generate endorsement key",
			map[string]interface{}{"instance_id": inst.InstanceID}, err)
	}
	key := &resources.NitroTpmKey{NitroTpmKeyView: resources.NitroTpmKeyView{
		InstanceID: inst.InstanceID,
		KeyType:    keyType,
		KeyFormat:  keyFormat,
		KeyValue:   value,
	}}
	b.store.Table(state.KindNitroTpmKey).Put(key)

	b.log.Debug("Endorsement key generated",
		zap.String("operation", "GetInstanceTpmEkPub"),
		zap.String("instance_id", inst.InstanceID),
		zap.String("key_type", keyType),
	)
	return &GetInstanceTpmEkPubResponse{NitroTpmKeyView: key.View()}, nil
}

// endorsementKey generates a public key and encodes it as base64 DER (SubjectPublicKeyInfo)
// or, for tpmt, as the raw public area.
func endorsementKey(keyType types.EkPubKeyType, format types.EkPubKeyFormat) (string, error) {
	var (
		public any
		raw    []byte
	)
	switch keyType {
	case types.EkPubKeyTypeEccSecP384:
		priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		if err != nil {
			return "", err
		}
		public = &priv.PublicKey
		raw = append(priv.PublicKey.X.Bytes(), priv.PublicKey.Y.Bytes()...)
	default:
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return "", err
		}
		public = &priv.PublicKey
		raw = priv.PublicKey.N.Bytes()
	}
	if format == types.EkPubKeyFormatTpmt {
		return base64.StdEncoding.EncodeToString(raw), nil
	}
	der, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}
