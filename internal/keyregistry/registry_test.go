package keyregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ParichayaHQ/vault/internal/crypto"
)

func TestBootstrapAndRotation(t *testing.T) {
	r := New()
	require.NoError(t, r.Bootstrap("bp1_root0000000000", "root-pub", "alice"))
	require.NoError(t, r.Bootstrap("bp1_quorum000000000", "quorum-pub", "alice"))
	assert.True(t, r.IsActive("bp1_root0000000000"))
	assert.Equal(t, 2, r.ActiveCount())

	t.Run("RevocationBySurvivingAuthority", func(t *testing.T) {
		err := r.ApplyRevocation("bp1_quorum000000000", RevocationPayload{
			RevokedKeyID:         "bp1_root0000000000",
			Reason:               "suspected compromise",
			TrustBoundaryEventID: "evt_000000000000000000000001",
		}, "evt_revocation00000000000001")
		require.NoError(t, err)
		assert.False(t, r.IsActive("bp1_root0000000000"))
	})

	t.Run("PromotionBySurvivingAuthority", func(t *testing.T) {
		err := r.ApplyPromotion("bp1_quorum000000000", PromotionPayload{
			NewKeyID:     "bp1_newroot00000000",
			NewPublicKey: "new-root-pub",
		})
		require.NoError(t, err)
		assert.True(t, r.IsActive("bp1_newroot00000000"))
	})
}

func TestSelfRevocationRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Bootstrap("bp1_solo0000000000", "pub", "alice"))

	err := r.ApplyRevocation("bp1_solo0000000000", RevocationPayload{
		RevokedKeyID: "bp1_solo0000000000",
	}, "evt_x")
	assert.Error(t, err)
	assert.True(t, r.IsActive("bp1_solo0000000000"))
}

func TestSelfPromotionRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Bootstrap("bp1_solo0000000000", "pub", "alice"))

	err := r.ApplyPromotion("bp1_solo0000000000", PromotionPayload{
		NewKeyID:     "bp1_solo0000000000",
		NewPublicKey: "pub",
	})
	assert.Error(t, err)
}

func TestPromotionOfKnownKeyRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Bootstrap("bp1_a000000000000000", "pub-a", "alice"))
	require.NoError(t, r.Bootstrap("bp1_b000000000000000", "pub-b", "alice"))

	err := r.ApplyPromotion("bp1_a000000000000000", PromotionPayload{
		NewKeyID:     "bp1_b000000000000000",
		NewPublicKey: "pub-b",
	})
	assert.Error(t, err)
}

func TestRevocationOfAlreadyRevokedKeyRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Bootstrap("bp1_a000000000000000", "pub-a", "alice"))
	require.NoError(t, r.Bootstrap("bp1_b000000000000000", "pub-b", "alice"))

	require.NoError(t, r.ApplyRevocation("bp1_b000000000000000", RevocationPayload{
		RevokedKeyID: "bp1_a000000000000000",
	}, "evt_1"))

	err := r.ApplyRevocation("bp1_b000000000000000", RevocationPayload{
		RevokedKeyID: "bp1_a000000000000000",
	}, "evt_2")
	assert.Error(t, err, "a revoked key may never be revoked again")
}

func TestRevocationByNonActiveSignerRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Bootstrap("bp1_a000000000000000", "pub-a", "alice"))
	require.NoError(t, r.Bootstrap("bp1_b000000000000000", "pub-b", "alice"))

	require.NoError(t, r.ApplyRevocation("bp1_b000000000000000", RevocationPayload{
		RevokedKeyID: "bp1_a000000000000000",
	}, "evt_1"))

	err := r.ApplyRevocation("bp1_a000000000000000", RevocationPayload{
		RevokedKeyID: "bp1_b000000000000000",
	}, "evt_2")
	assert.Error(t, err, "a revoked key cannot itself perform further revocations")
}

func TestRevokedNeverReturnsToActive(t *testing.T) {
	r := New()
	require.NoError(t, r.Bootstrap("bp1_a000000000000000", "pub-a", "alice"))
	require.NoError(t, r.Bootstrap("bp1_b000000000000000", "pub-b", "alice"))
	require.NoError(t, r.ApplyRevocation("bp1_b000000000000000", RevocationPayload{
		RevokedKeyID: "bp1_a000000000000000",
	}, "evt_1"))

	rec, ok := r.Get("bp1_a000000000000000")
	require.True(t, ok)
	assert.Equal(t, StatusRevoked, rec.Status)
}

func TestLoadSnapshotRoundTrip(t *testing.T) {
	kp, err := crypto.NewEd25519KeyPair()
	require.NoError(t, err)

	r := New()
	require.NoError(t, r.Bootstrap(kp.KeyID(), kp.PublicKeyBase64(), "alice"))

	snapshot := r.Snapshot()
	reloaded := LoadSnapshot(snapshot)

	publicKey, active, known := reloaded.PublicKeyForSigning(kp.KeyID())
	require.True(t, known)
	assert.True(t, active)
	assert.Equal(t, []byte(kp.PublicKey), publicKey)
}
