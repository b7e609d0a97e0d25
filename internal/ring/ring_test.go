package ring

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"assassinserver/internal/dbtest"
	"assassinserver/internal/gameerr"
	"assassinserver/internal/participants"
	"assassinserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const gameID = 1

var fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Manager, Stores) {
	t.Helper()
	m := NewManager(zap.NewNop()).WithClock(func() time.Time { return fixedNow })
	return m, NewStores(dbtest.Open(t))
}

func joinAll(t *testing.T, m *Manager, st Stores, users ...uint) {
	t.Helper()
	for _, u := range users {
		_, err := m.Join(context.Background(), st, gameID, u)
		require.NoError(t, err)
	}
}

func view(t *testing.T, m *Manager, st Stores) []uint {
	t.Helper()
	order, err := m.View(context.Background(), st, gameID)
	require.NoError(t, err)
	return order
}

func participant(t *testing.T, st Stores, user uint) *models.Participant {
	t.Helper()
	p, err := st.Participants.Get(context.Background(), gameID, user)
	require.NoError(t, err)
	return p
}

func TestJoinClosesRing(t *testing.T) {
	for n := 1; n <= 8; n++ {
		m, st := setup(t)
		users := make([]uint, n)
		for i := range users {
			users[i] = uint(i + 1)
		}
		joinAll(t, m, st, users...)
		assert.Equal(t, users, view(t, m, st), "n=%d", n)
	}
}

func TestJoinSeam(t *testing.T) {
	m, st := setup(t)

	joinAll(t, m, st, 10)
	assert.Equal(t, uint(10), participant(t, st, 10).TargetUserID)

	joinAll(t, m, st, 20, 30)
	assert.Equal(t, uint(20), participant(t, st, 10).TargetUserID)
	assert.Equal(t, uint(30), participant(t, st, 20).TargetUserID)
	assert.Equal(t, uint(10), participant(t, st, 30).TargetUserID)
}

func TestJoinTwice(t *testing.T) {
	m, st := setup(t)
	joinAll(t, m, st, 10, 20)

	p, err := m.Join(context.Background(), st, gameID, 10)
	assert.True(t, errors.Is(err, gameerr.ErrAlreadyJoined))
	require.NotNil(t, p)
	assert.Equal(t, uint(10), p.UserID)

	// 二度目の参加でリングは変化しない
	assert.Equal(t, []uint{10, 20}, view(t, m, st))
}

func TestSubmitClaimPreconditions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare func(t *testing.T, m *Manager, st Stores)
		in      ClaimInput
		want    error
	}{
		{
			name: "not a participant",
			in:   ClaimInput{PosterUserID: 99},
			want: gameerr.ErrNotAlive,
		},
		{
			name: "wrong target",
			in:   ClaimInput{PosterUserID: 1, VictimUserID: 3},
			want: gameerr.ErrWrongTarget,
		},
		{
			name: "duplicate",
			prepare: func(t *testing.T, m *Manager, st Stores) {
				_, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
				require.NoError(t, err)
			},
			in:   ClaimInput{PosterUserID: 1},
			want: gameerr.ErrDuplicateClaim,
		},
		{
			name: "duplicate while conflicting",
			prepare: func(t *testing.T, m *Manager, st Stores) {
				c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
				require.NoError(t, err)
				_, err = m.Deny(ctx, st, c.ID, models.Actor{UserID: 2})
				require.NoError(t, err)
			},
			in:   ClaimInput{PosterUserID: 1},
			want: gameerr.ErrDuplicateClaim,
		},
		{
			name: "poster on notice",
			prepare: func(t *testing.T, m *Manager, st Stores) {
				// 3→1 の申請で 1 が Pending になる
				_, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 3})
				require.NoError(t, err)
			},
			in:   ClaimInput{PosterUserID: 1},
			want: gameerr.ErrNotAlive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, st := setup(t)
			joinAll(t, m, st, 1, 2, 3)
			if tt.prepare != nil {
				tt.prepare(t, m, st)
			}
			before, err := st.Participants.ListByGame(ctx, gameID, participants.Filter{})
			require.NoError(t, err)

			_, err = m.SubmitClaim(ctx, st, gameID, tt.in)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			after, err := st.Participants.ListByGame(ctx, gameID, participants.Filter{})
			require.NoError(t, err)
			for i := range before {
				assert.Equal(t, before[i].LifeStatus, after[i].LifeStatus)
				assert.Equal(t, before[i].TargetUserID, after[i].TargetUserID)
			}
		})
	}
}

func TestSubmitClaimPutsVictimOnNotice(t *testing.T) {
	ctx := context.Background()
	m, st := setup(t)
	joinAll(t, m, st, 1, 2, 3)

	lat, lng := 34.14, -118.41
	c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1, VictimUserID: 2, ProofRef: "v/1", Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPending, c.Status)
	assert.Equal(t, uint(2), c.VictimUserID)
	assert.Equal(t, "v/1", c.ProofRef)
	assert.Equal(t, models.LifePending, participant(t, st, 2).LifeStatus)
	assert.Equal(t, []uint{1, 2, 3}, view(t, m, st))
}

func TestConfirmSplices(t *testing.T) {
	ctx := context.Background()
	m, st := setup(t)
	joinAll(t, m, st, 1, 2, 3, 4)

	c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 2})
	require.NoError(t, err)

	_, err = m.Confirm(ctx, st, c.ID, models.Actor{UserID: 1})
	assert.True(t, errors.Is(err, gameerr.ErrForbidden))
	_, err = m.Confirm(ctx, st, c.ID, models.Actor{UserID: 99, Admin: true})
	assert.True(t, errors.Is(err, gameerr.ErrForbidden), "admins resolve disputes, they do not confirm")

	got, err := m.Confirm(ctx, st, c.ID, models.Actor{UserID: 3})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimVerified, got.Status)
	require.NotNil(t, got.ConfirmedAt)
	assert.True(t, fixedNow.Equal(*got.ConfirmedAt))

	victim := participant(t, st, 3)
	assert.Equal(t, models.LifeDead, victim.LifeStatus)
	require.NotNil(t, victim.DiedAt)
	assert.Equal(t, uint(4), participant(t, st, 2).TargetUserID)
	assert.Equal(t, []uint{1, 2, 4}, view(t, m, st))

	_, err = m.Confirm(ctx, st, c.ID, models.Actor{UserID: 3})
	assert.True(t, errors.Is(err, gameerr.ErrWrongState))
	assert.Equal(t, []uint{1, 2, 4}, view(t, m, st))
}

func TestDenyKeepsVictimPending(t *testing.T) {
	ctx := context.Background()
	m, st := setup(t)
	joinAll(t, m, st, 1, 2, 3)

	c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
	require.NoError(t, err)

	_, err = m.Deny(ctx, st, c.ID, models.Actor{UserID: 1})
	assert.True(t, errors.Is(err, gameerr.ErrForbidden))

	got, err := m.Deny(ctx, st, c.ID, models.Actor{UserID: 2})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimConflicting, got.Status)
	assert.Equal(t, models.LifePending, participant(t, st, 2).LifeStatus)
	assert.Equal(t, []uint{1, 2, 3}, view(t, m, st))

	// Conflicting の申請はもう本人には操作できない
	_, err = m.Deny(ctx, st, c.ID, models.Actor{UserID: 2})
	assert.True(t, errors.Is(err, gameerr.ErrWrongState))
	_, err = m.Confirm(ctx, st, c.ID, models.Actor{UserID: 2})
	assert.True(t, errors.Is(err, gameerr.ErrWrongState))
}

func TestAdminResolve(t *testing.T) {
	ctx := context.Background()
	admin := models.Actor{UserID: 500, Admin: true}

	t.Run("only conflicting claims", func(t *testing.T) {
		m, st := setup(t)
		joinAll(t, m, st, 1, 2, 3)
		c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
		require.NoError(t, err)

		_, err = m.AdminResolve(ctx, st, c.ID, admin, OutcomeVerify)
		assert.True(t, errors.Is(err, gameerr.ErrWrongState), "pending")

		_, err = m.Confirm(ctx, st, c.ID, models.Actor{UserID: 2})
		require.NoError(t, err)
		_, err = m.AdminResolve(ctx, st, c.ID, admin, OutcomeDeny)
		assert.True(t, errors.Is(err, gameerr.ErrWrongState), "verified")
	})

	t.Run("denied claim cannot be resolved again", func(t *testing.T) {
		m, st := setup(t)
		joinAll(t, m, st, 1, 2, 3)
		c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
		require.NoError(t, err)
		_, err = m.Deny(ctx, st, c.ID, models.Actor{UserID: 2})
		require.NoError(t, err)
		_, err = m.AdminResolve(ctx, st, c.ID, admin, OutcomeDeny)
		require.NoError(t, err)

		_, err = m.AdminResolve(ctx, st, c.ID, admin, OutcomeVerify)
		assert.True(t, errors.Is(err, gameerr.ErrWrongState))
	})

	t.Run("non admin", func(t *testing.T) {
		m, st := setup(t)
		joinAll(t, m, st, 1, 2, 3)
		c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
		require.NoError(t, err)
		_, err = m.Deny(ctx, st, c.ID, models.Actor{UserID: 2})
		require.NoError(t, err)

		_, err = m.AdminResolve(ctx, st, c.ID, models.Actor{UserID: 3}, OutcomeVerify)
		assert.True(t, errors.Is(err, gameerr.ErrForbidden))
	})

	t.Run("verify splices", func(t *testing.T) {
		m, st := setup(t)
		joinAll(t, m, st, 1, 2, 3)
		c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 3})
		require.NoError(t, err)
		_, err = m.Deny(ctx, st, c.ID, models.Actor{UserID: 1})
		require.NoError(t, err)

		got, err := m.AdminResolve(ctx, st, c.ID, admin, OutcomeVerify)
		require.NoError(t, err)
		assert.Equal(t, models.ClaimVerified, got.Status)
		require.NotNil(t, got.ResolvedByUserID)
		assert.Equal(t, uint(500), *got.ResolvedByUserID)
		assert.Equal(t, models.LifeDead, participant(t, st, 1).LifeStatus)
		assert.Equal(t, []uint{2, 3}, view(t, m, st))
	})

	t.Run("deny reverts victim", func(t *testing.T) {
		m, st := setup(t)
		joinAll(t, m, st, 1, 2, 3)
		before := view(t, m, st)

		c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
		require.NoError(t, err)
		_, err = m.Deny(ctx, st, c.ID, models.Actor{UserID: 2})
		require.NoError(t, err)

		got, err := m.AdminResolve(ctx, st, c.ID, admin, OutcomeDeny)
		require.NoError(t, err)
		assert.Equal(t, models.ClaimDenied, got.Status)
		assert.Nil(t, got.ConfirmedAt)
		assert.Equal(t, models.LifeAlive, participant(t, st, 2).LifeStatus)
		assert.Equal(t, before, view(t, m, st))

		// 却下後は同じ相手に再申請できる
		_, err = m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
		assert.NoError(t, err)
	})

	t.Run("unknown outcome", func(t *testing.T) {
		m, st := setup(t)
		_, err := m.AdminResolve(ctx, st, 1, admin, Outcome("maybe"))
		assert.Equal(t, gameerr.KindValidation, gameerr.KindOf(err))
	})
}

func TestHunterSearchIntegrity(t *testing.T) {
	ctx := context.Background()
	m, st := setup(t)
	joinAll(t, m, st, 1, 2, 3)

	c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
	require.NoError(t, err)

	// 3 も 2 を狙うように壊す
	p3 := participant(t, st, 3)
	p3.TargetUserID = 2
	require.NoError(t, st.Participants.Save(ctx, p3))

	_, err = m.Confirm(ctx, st, c.ID, models.Actor{UserID: 2})
	assert.Equal(t, gameerr.KindIntegrity, gameerr.KindOf(err))
}

func TestHunterSearchSkipsDeadHunters(t *testing.T) {
	ctx := context.Background()
	m, st := setup(t)
	joinAll(t, m, st, 1, 2, 3, 4)

	// 2 を倒すと 1→3 になるが、死んだ 2 の行も 3 を指したまま残る
	c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
	require.NoError(t, err)
	_, err = m.Confirm(ctx, st, c.ID, models.Actor{UserID: 2})
	require.NoError(t, err)
	assert.Equal(t, uint(3), participant(t, st, 2).TargetUserID)

	c, err = m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 1})
	require.NoError(t, err)
	assert.Equal(t, uint(3), c.VictimUserID)
	_, err = m.Confirm(ctx, st, c.ID, models.Actor{UserID: 3})
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 4}, view(t, m, st))
}

func TestWinner(t *testing.T) {
	ctx := context.Background()
	m, st := setup(t)
	joinAll(t, m, st, 1, 2)

	_, done, err := m.Winner(ctx, st, gameID)
	require.NoError(t, err)
	assert.False(t, done)

	c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: 2})
	require.NoError(t, err)
	_, err = m.Confirm(ctx, st, c.ID, models.Actor{UserID: 1})
	require.NoError(t, err)

	w, done, err := m.Winner(ctx, st, gameID)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, uint(2), w.UserID)
	assert.Equal(t, uint(2), w.TargetUserID)
	assert.Equal(t, []uint{2}, view(t, m, st))
}

// 生存者が1人になるまでランダムに進める。承認のたびにリングは1つの巡回のまま1人ずつ縮む
func TestRandomPlayKeepsSingleCycle(t *testing.T) {
	ctx := context.Background()
	admin := models.Actor{UserID: 1000, Admin: true}
	rng := rand.New(rand.NewSource(7))

	m, st := setup(t)
	users := make([]uint, 12)
	for i := range users {
		users[i] = uint(i + 1)
	}
	joinAll(t, m, st, users...)

	size := len(view(t, m, st))
	for step := 0; size > 1 && step < 500; step++ {
		order := view(t, m, st)
		poster := order[rng.Intn(len(order))]
		if participant(t, st, poster).LifeStatus != models.LifeAlive {
			continue
		}
		c, err := m.SubmitClaim(ctx, st, gameID, ClaimInput{PosterUserID: poster})
		if errors.Is(err, gameerr.ErrTargetUnavailable) {
			continue
		}
		require.NoError(t, err)

		killed := true
		switch rng.Intn(4) {
		case 0, 1:
			_, err = m.Confirm(ctx, st, c.ID, models.Actor{UserID: c.VictimUserID})
		case 2:
			_, err = m.Deny(ctx, st, c.ID, models.Actor{UserID: c.VictimUserID})
			require.NoError(t, err)
			_, err = m.AdminResolve(ctx, st, c.ID, admin, OutcomeVerify)
		default:
			_, err = m.Deny(ctx, st, c.ID, models.Actor{UserID: c.VictimUserID})
			require.NoError(t, err)
			_, err = m.AdminResolve(ctx, st, c.ID, admin, OutcomeDeny)
			killed = false
		}
		require.NoError(t, err)

		now := len(view(t, m, st))
		if killed {
			assert.Equal(t, size-1, now)
		} else {
			assert.Equal(t, size, now)
		}
		size = now
	}

	require.Equal(t, 1, size)
	_, done, err := m.Winner(ctx, st, gameID)
	require.NoError(t, err)
	assert.True(t, done)
}
