package backends

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ec2emulator/errors"
	"ec2emulator/filters"
	"ec2emulator/params"
	"ec2emulator/resources"
	"ec2emulator/state"
)

// KeyPairBackend implements the key pair actions.
type KeyPairBackend struct {
	*base
}

var keyPairMatcher = filters.Matcher[*resources.KeyPair]{
	Fields: map[string]filters.Field[*resources.KeyPair]{
		"key-pair-id": filters.Value(func(k *resources.KeyPair) string { return k.KeyPairID }),
		"key-name":    filters.Value(func(k *resources.KeyPair) string { return k.KeyName }),
		"fingerprint": filters.Value(func(k *resources.KeyPair) string { return k.KeyFingerprint }),
		"key-type":    filters.Value(func(k *resources.KeyPair) string { return k.KeyType }),
	},
	Tags: tagsOf[*resources.KeyPair],
}

// keyPairByName finds a key pair by name.
func keyPairByName(s *state.Store, name string) (*resources.KeyPair, bool) {
	for _, k := range state.All[*resources.KeyPair](s, state.KindKeyPair) {
		if k.KeyName == name {
			return k, true
		}
	}
	return nil, false
}

// fingerprint renders a digest as colon separated hex pairs.
func fingerprint(sum []byte) string {
	encoded := hex.EncodeToString(sum)
	pairs := make([]string, 0, len(encoded)/2)
	for i := 0; i+1 < len(encoded); i += 2 {
		pairs = append(pairs, encoded[i:i+2])
	}
	return strings.Join(pairs, ":")
}

// KeyPairResponse carries a created or imported key pair.
type KeyPairResponse struct {
	Meta
	KeyName        string         `xml:"keyName"`
	KeyFingerprint string         `xml:"keyFingerprint"`
	KeyMaterial    string         `xml:"keyMaterial,omitempty"`
	KeyPairID      string         `xml:"keyPairId"`
	Tags           resources.Tags `xml:"tagSet>item,omitempty"`
}

func (b *KeyPairBackend) putKeyPair(name, keyType, fp, publicKey string, p params.Params) *resources.KeyPair {
	key := resources.NewKeyPair(resources.KeyPairView{
		KeyPairID:      b.store.NewID(state.KindKeyPair),
		KeyName:        name,
		KeyFingerprint: fp,
		KeyType:        keyType,
		CreateTime:     b.timestamp(),
	})
	key.PublicKeyMaterial = publicKey
	key.Tags = p.TagSpecifications(key.ResourceType())
	b.store.Table(state.KindKeyPair).Put(key)
	return key
}

func (b *KeyPairBackend) checkName(name string) error {
	if _, exists := keyPairByName(b.store, name); exists {
		return errors.API("InvalidKeyPair.Duplicate", "The keypair '%s' already exists.", name)
	}
	return nil
}

// CreateKeyPair generates a key pair and returns its private material once.
func (b *KeyPairBackend) CreateKeyPair(p params.Params) (*KeyPairResponse, error) {
	if err := p.Require("KeyName"); err != nil {
		return nil, err
	}
	name := p.String("KeyName")
	keyType := p.String("KeyType")
	if keyType == "" {
		keyType = string(types.KeyTypeRsa)
	}
	if err := oneOf("KeyType", keyType, string(types.KeyTypeRsa), string(types.KeyTypeEd25519)); err != nil {
		return nil, err
	}
	if err := b.checkName(name); err != nil {
		return nil, err
	}

	raw := []byte(uuid.NewString() + uuid.NewString())
	header := "RSA PRIVATE KEY"
	if keyType == string(types.KeyTypeEd25519) {
		header = "OPENSSH PRIVATE KEY"
	}
	material := "-----BEGIN " + header + "-----\n" + base64.StdEncoding.EncodeToString(raw) + "\n-----END " + header + "-----"
	sum := sha1.Sum(raw)
	key := b.putKeyPair(name, keyType, fingerprint(sum[:]), "", p)

	b.log.Debug("Key pair created", zap.String("operation", "CreateKeyPair"), zap.String("key_pair_id", key.KeyPairID))
	return &KeyPairResponse{
		KeyName:        key.KeyName,
		KeyFingerprint: key.KeyFingerprint,
		KeyMaterial:    material,
		KeyPairID:      key.KeyPairID,
		Tags:           key.Tags.Clone(),
	}, nil
}

// ImportKeyPair stores a caller supplied public key.
func (b *KeyPairBackend) ImportKeyPair(p params.Params) (*KeyPairResponse, error) {
	if err := p.Require("KeyName", "PublicKeyMaterial"); err != nil {
		return nil, err
	}
	name := p.String("KeyName")
	if err := b.checkName(name); err != nil {
		return nil, err
	}
	material := p.String("PublicKeyMaterial")
	if decoded, err := base64.StdEncoding.DecodeString(material); err == nil {
		material = string(decoded)
	}
	keyType := string(types.KeyTypeRsa)
	if strings.HasPrefix(material, "ssh-ed25519") {
		keyType = string(types.KeyTypeEd25519)
	} else if !strings.HasPrefix(material, "ssh-rsa") {
		return nil, errors.API("InvalidKey.Format", "Key is not in valid OpenSSH public key format")
	}
	sum := md5.Sum([]byte(material))
	key := b.putKeyPair(name, keyType, fingerprint(sum[:]), material, p)

	b.log.Debug("Key pair imported", zap.String("operation", "ImportKeyPair"), zap.String("key_pair_id", key.KeyPairID))
	return &KeyPairResponse{
		KeyName:        key.KeyName,
		KeyFingerprint: key.KeyFingerprint,
		KeyPairID:      key.KeyPairID,
		Tags:           key.Tags.Clone(),
	}, nil
}

// DeleteKeyPairResponse echoes the deleted key pair id.
type DeleteKeyPairResponse struct {
	Meta
	Return    bool   `xml:"return"`
	KeyPairID string `xml:"keyPairId"`
}

// DeleteKeyPair removes a key pair by name or id while no instance was launched with it.
func (b *KeyPairBackend) DeleteKeyPair(p params.Params) (*DeleteKeyPairResponse, error) {
	var key *resources.KeyPair
	switch {
	case p.Has("KeyPairId"):
		k, err := lookup[*resources.KeyPair](b.store, state.KindKeyPair, p.String("KeyPairId"))
		if err != nil {
			return nil, err
		}
		key = k
	case p.Has("KeyName"):
		k, found := keyPairByName(b.store, p.String("KeyName"))
		if !found {
			return nil, state.KindKeyPair.NotFound(p.String("KeyName"))
		}
		key = k
	default:
		return nil, errors.MissingParameter("KeyName")
	}
	if err := ensureNoDependents(key); err != nil {
		return nil, err
	}
	b.store.Table(state.KindKeyPair).Delete(key.KeyPairID)
	b.log.Debug("Key pair deleted", zap.String("operation", "DeleteKeyPair"), zap.String("key_pair_id", key.KeyPairID))
	return &DeleteKeyPairResponse{Return: true, KeyPairID: key.KeyPairID}, nil
}

// DescribeKeyPairsResponse lists key pairs.
type DescribeKeyPairsResponse struct {
	Meta
	KeyPairs []resources.KeyPairView `xml:"keySet>item"`
}

// DescribeKeyPairs lists key pairs by name, id and filters.
func (b *KeyPairBackend) DescribeKeyPairs(p params.Params) (*DescribeKeyPairsResponse, error) {
	ids := idList(p, "KeyPairId")
	for _, name := range p.List("KeyName") {
		k, found := keyPairByName(b.store, name)
		if !found {
			return nil, state.KindKeyPair.NotFound(name)
		}
		ids = append(ids, k.KeyPairID)
	}
	includePublic, err := p.Bool("IncludePublicKey", false)
	if err != nil {
		return nil, err
	}
	views, _, err := describe(b.base, state.KindKeyPair, p, ids, keyPairMatcher, func(k *resources.KeyPair) resources.KeyPairView {
		view := k.View()
		if includePublic {
			view.PublicKey = k.PublicKeyMaterial
		}
		return view
	}, false)
	if err != nil {
		return nil, err
	}
	return &DescribeKeyPairsResponse{KeyPairs: views}, nil
}
