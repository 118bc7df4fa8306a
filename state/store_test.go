package state

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec2emulator/errors"
)

type fakeRecord struct {
	id   string
	name string
}

func (f *fakeRecord) ID() string { return f.id }

func TestStore_TablesForEveryKind(t *testing.T) {
	s := New()
	for _, kind := range Kinds() {
		assert.NotPanics(t, func() { s.Table(kind) }, "kind %s", kind)
		assert.Equal(t, kind, s.Table(kind).Kind())
	}
	assert.Panics(t, func() { s.Table(Kind("nat-gateway")) })
}

func TestTable_PutKeepsInsertionOrder(t *testing.T) {
	s := New()
	table := s.Table(KindVpc)
	table.Put(&fakeRecord{id: "vpc-b"})
	table.Put(&fakeRecord{id: "vpc-a"})
	table.Put(&fakeRecord{id: "vpc-c"})
	table.Put(&fakeRecord{id: "vpc-a", name: "replaced"})

	assert.Equal(t, []string{"vpc-b", "vpc-a", "vpc-c"}, table.IDs())
	rec, found := table.Get("vpc-a")
	require.True(t, found)
	assert.Equal(t, "replaced", rec.(*fakeRecord).name)

	assert.True(t, table.Delete("vpc-a"))
	assert.False(t, table.Delete("vpc-a"))
	assert.Equal(t, []string{"vpc-b", "vpc-c"}, table.IDs())
	assert.Equal(t, 2, table.Len())
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		ids         []string
		wantIDs     []string
		wantMissing []string
	}{
		{
			name:    "all present in request order",
			ids:     []string{"i-2", "i-1"},
			wantIDs: []string{"i-2", "i-1"},
		},
		{
			name:    "duplicates collapse",
			ids:     []string{"i-1", "i-1", "i-2"},
			wantIDs: []string{"i-1", "i-2"},
		},
		{
			name:        "one missing fails the whole call",
			ids:         []string{"i-1", "i-404", "i-2", "i-405"},
			wantMissing: []string{"i-404", "i-405"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Table(KindInstance).Put(&fakeRecord{id: "i-1"})
			s.Table(KindInstance).Put(&fakeRecord{id: "i-2"})

			got, err := Resolve[*fakeRecord](s, KindInstance, tt.ids)
			if tt.wantMissing != nil {
				require.Error(t, err)
				assert.Nil(t, got)
				assert.True(t, errors.Is(err, "InvalidInstanceID.NotFound"))
				for _, id := range tt.wantMissing {
					assert.Contains(t, err.Error(), id)
				}
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID())
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestNewID(t *testing.T) {
	s := New()
	pattern := regexp.MustCompile(`^subnet-[0-9a-f]{17}$`)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := s.NewID(KindSubnet)
		require.Regexp(t, pattern, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
		s.Table(KindSubnet).Put(&fakeRecord{id: id})
	}
	assert.Panics(t, func() { s.NewID(KindRoute) })
}

func TestRandomHex_NoFixedNibble(t *testing.T) {
	// Position 12 of a raw v4 uuid is always 4.
	seen := make([]map[byte]bool, idHexLength)
	for i := range seen {
		seen[i] = map[byte]bool{}
	}
	for i := 0; i < 500; i++ {
		h := randomHex(idHexLength)
		require.Len(t, h, idHexLength)
		for pos := 0; pos < len(h); pos++ {
			seen[pos][h[pos]] = true
		}
	}
	for pos, digits := range seen {
		assert.Greater(t, len(digits), 4, "position %d draws from %d digits", pos, len(digits))
	}

	long := randomHex(70)
	assert.Len(t, long, 70)
	assert.Regexp(t, `^[0-9a-f]{70}$`, long)
}

func TestKindForID(t *testing.T) {
	tests := []struct {
		id     string
		want   Kind
		wantOK bool
	}{
		{id: "tgw-0123456789abcdef0", want: KindTransitGateway, wantOK: true},
		{id: "tgw-attach-0123456789abcdef0", want: KindTransitGatewayAttachment, wantOK: true},
		{id: "i-0123456789abcdef0", want: KindInstance, wantOK: true},
		{id: "iip-assoc-0123456789abcdef0", want: KindIamInstanceProfileAssociation, wantOK: true},
		{id: "export-i-0123456789abcdef0", want: KindExportTask, wantOK: true},
		{id: "nat-0123456789abcdef0"},
		{id: "vpc0123"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := KindForID(tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKind_NotFound(t *testing.T) {
	err := KindVerifiedAccessGroup.NotFound("vagr-1")
	assert.Equal(t, errors.ErrorType("InvalidVerifiedAccessGroupId.NotFound"), err.Type)
	assert.Contains(t, err.Message, "vagr-1")
}

func TestStore_Aux(t *testing.T) {
	s := New()
	s.Aux("credit")["t2"] = "unlimited"
	assert.Equal(t, "unlimited", s.Aux("credit")["t2"])
	s.Aux("metadata")
	assert.Equal(t, []string{"credit", "metadata"}, s.AuxNames())
}

func TestStore_UpdateIsExclusive(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(func() error {
				s.Table(KindKeyPair).Put(&fakeRecord{id: s.NewID(KindKeyPair)})
				return nil
			})
		}()
	}
	wg.Wait()

	var count int
	require.NoError(t, s.View(func() error {
		count = s.Counts()[KindKeyPair]
		return nil
	}))
	assert.Equal(t, 50, count)
}
