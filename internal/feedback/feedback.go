// Package feedback applies the online user-vector update: each click,
// save, or dismissal nudges a user's query vector toward or away from
// the item they acted on.
package feedback

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scalytics/threadwatch/internal/embed"
	"github.com/scalytics/threadwatch/internal/store"
)

var positiveActions = map[string]bool{"click": true, "save": true, "thumbs_up": true}
var negativeActions = map[string]bool{"thumbs_down": true, "dismiss": true}

// Errors surfaced to the HTTP layer as 4xx responses.
var (
	ErrInvalidAction      = errors.New("invalid_action")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrRoleNotFound       = errors.New("role_not_found")
	ErrEmbeddingNotFound  = errors.New("embedding_not_found")
)

// Config holds the feedback loop's tunables, matching the
// USER_EMBED_ALPHA/USER_DECAY_DAYS/USER_DECAY_BLEND environment variables.
type Config struct {
	EmbedAlpha float64
	DecayDays  float64
	DecayBlend float64
}

// Result is what ApplyFeedback reports back to the caller.
type Result struct {
	InteractionID string
	UserID        string
	ProjectID     string
	ThreadTS      string
	Action        string
	Direction     string // "toward" or "away"
	NewNorm       float64
}

// decayUserVector blends a stale user vector back toward their role
// vector once it has gone DecayDays without an update, so an inactive
// user's preferences slowly regress to their role's baseline rather
// than staying frozen on a handful of old signals forever.
func decayUserVector(userVec, roleVec []float64, lastUpdated float64, cfg Config) []float64 {
	now := float64(time.Now().UnixNano()) / 1e9
	if now-lastUpdated <= cfg.DecayDays*86400 {
		return userVec
	}
	blended := make([]float64, len(userVec))
	for i := range userVec {
		var r float64
		if i < len(roleVec) {
			r = roleVec[i]
		}
		blended[i] = (1.0-cfg.DecayBlend)*userVec[i] + cfg.DecayBlend*r
	}
	return embed.Normalize(blended)
}

// Apply records the interaction and updates the user's stored vector.
func Apply(s *store.Store, userID, projectID, threadTS, action string, cfg Config) (Result, error) {
	if !positiveActions[action] && !negativeActions[action] {
		return Result{}, ErrInvalidAction
	}

	user, ok, err := s.FetchUser(userID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, ErrUserNotFound
	}

	var role *store.Role
	if user.RoleID != "" {
		r, ok, err := s.FetchRole(user.RoleID)
		if err != nil {
			return Result{}, err
		}
		if ok {
			role = r
		}
	}
	if role == nil {
		return Result{}, ErrRoleNotFound
	}

	embedding, ok, err := s.FetchEmbedding(threadTS)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, ErrEmbeddingNotFound
	}

	userVecRaw := user.Vector
	if len(userVecRaw) == 0 {
		userVecRaw = role.Vector
	}
	userVec := embed.Normalize(append([]float64(nil), userVecRaw...))
	userVec = decayUserVector(userVec, role.Vector, user.UpdatedAt, cfg)
	itemVec := embed.Normalize(append([]float64(nil), embedding.Vector...))

	alpha := cfg.EmbedAlpha
	updated := make([]float64, len(userVec))
	direction := "toward"
	if positiveActions[action] {
		for i := range userVec {
			var v float64
			if i < len(itemVec) {
				v = itemVec[i]
			}
			updated[i] = alpha*userVec[i] + (1.0-alpha)*v
		}
	} else {
		direction = "away"
		for i := range userVec {
			var v float64
			if i < len(itemVec) {
				v = itemVec[i]
			}
			updated[i] = alpha*userVec[i] - (1.0-alpha)*v
		}
	}
	updated = embed.Normalize(updated)

	interactionID := "int-" + strings.ReplaceAll(uuid.New().String(), "-", "")
	if err := s.InsertInteraction(interactionID, userID, projectID, threadTS, action); err != nil {
		return Result{}, err
	}
	if err := s.UpdateUserVector(userID, updated); err != nil {
		return Result{}, err
	}

	return Result{
		InteractionID: interactionID,
		UserID:        userID,
		ProjectID:     projectID,
		ThreadTS:      threadTS,
		Action:        action,
		Direction:     direction,
		NewNorm:       embed.L2Norm(updated),
	}, nil
}
