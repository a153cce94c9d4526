// Package profile manages roles, phases, projects, and users, and
// builds the weighted composite query vector a user's digest is ranked
// against.
package profile

import (
	"errors"
	"sort"

	"github.com/scalytics/threadwatch/internal/embed"
	"github.com/scalytics/threadwatch/internal/store"
)

// Sentinel errors mirroring the original's ValueError("...") messages,
// surfaced by internal/httpapi as 404s, except ErrRoleVectorMissing
// (400) and an unknown phase or role named in a create/update request
// body (400).
var (
	ErrRoleNotFound    = errors.New("role_not_found")
	ErrPhaseNotFound   = errors.New("phase_not_found")
	ErrProjectNotFound = errors.New("project_not_found")
	ErrUserNotFound    = errors.New("user_not_found")
	ErrRoleVectorMissing = errors.New("role_vector_missing")
)

// Manager wraps a Store with the profile CRUD and query-vector logic.
type Manager struct {
	store *store.Store
}

// New constructs a Manager over s.
func New(s *store.Store) *Manager {
	return &Manager{store: s}
}

// CreateRole embeds description and persists the new role.
func (m *Manager) CreateRole(roleID, name, description string) ([]float64, error) {
	vector := embed.Compute(description)
	if err := m.store.UpsertRole(roleID, name, description, vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// CreatePhase embeds description and persists the new phase.
func (m *Manager) CreatePhase(phaseKey, description string) ([]float64, error) {
	vector := embed.Compute(description)
	if err := m.store.UpsertPhase(phaseKey, description, vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// CreateProject validates currentPhase exists, then persists the project.
func (m *Manager) CreateProject(projectID, name, currentPhase string) error {
	_, ok, err := m.store.FetchPhase(currentPhase)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPhaseNotFound
	}
	return m.store.UpsertProject(projectID, name, currentPhase)
}

// UpdateProjectPhase validates phaseKey exists, then advances the project.
func (m *Manager) UpdateProjectPhase(projectID, phaseKey string) error {
	_, ok, err := m.store.FetchPhase(phaseKey)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPhaseNotFound
	}
	return m.store.UpdateProjectPhase(projectID, phaseKey)
}

// CreateUser seeds a new user's vector from their role's vector, if a
// role is given. Returns the seeded vector (nil if roleID is empty) and
// the role id.
func (m *Manager) CreateUser(userID, name, roleID string) ([]float64, string, error) {
	var vector []float64
	if roleID != "" {
		role, ok, err := m.store.FetchRole(roleID)
		if err != nil {
			return nil, "", err
		}
		if !ok {
			return nil, "", ErrRoleNotFound
		}
		vector = role.Vector
	}
	if err := m.store.UpsertUser(userID, name, "", roleID, vector); err != nil {
		return nil, "", err
	}
	return vector, roleID, nil
}

// UpdateUserRole reassigns a user's role and resets their vector to the
// new role's vector.
func (m *Manager) UpdateUserRole(userID, roleID string) ([]float64, error) {
	role, ok, err := m.store.FetchRole(roleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoleNotFound
	}
	if err := m.store.UpdateUserRole(userID, roleID, role.Vector); err != nil {
		return nil, err
	}
	return role.Vector, nil
}

// AddUserToProject validates both ids exist, then records membership.
func (m *Manager) AddUserToProject(userID, projectID string) error {
	if _, ok, err := m.store.FetchUser(userID); err != nil {
		return err
	} else if !ok {
		return ErrUserNotFound
	}
	if _, ok, err := m.store.FetchProject(projectID); err != nil {
		return err
	} else if !ok {
		return ErrProjectNotFound
	}
	return m.store.AddUserProject(userID, projectID)
}

// UserProfile is the externally-visible shape of /profiles/users/{id}.
type UserProfile struct {
	UserID        string
	RoleID        string
	UserVectorDim int
	Projects      []string
}

// GetUserProfile returns a summary of a user's assignment and projects.
func (m *Manager) GetUserProfile(userID string) (UserProfile, error) {
	user, ok, err := m.store.FetchUser(userID)
	if err != nil {
		return UserProfile{}, err
	}
	if !ok {
		return UserProfile{}, ErrUserNotFound
	}
	projects, err := m.store.FetchUserProjects(userID)
	if err != nil {
		return UserProfile{}, err
	}
	ids := make([]string, len(projects))
	for i, p := range projects {
		ids[i] = p.ProjectID
	}
	return UserProfile{
		UserID:        user.UserID,
		RoleID:        user.RoleID,
		UserVectorDim: len(user.Vector),
		Projects:      ids,
	}, nil
}

// ProjectProfile is the externally-visible shape of /profiles/projects/{id}.
type ProjectProfile struct {
	ProjectID      string
	CurrentPhase   string
	PhaseVectorDim int
	PhaseVector    []float64
}

// GetProjectProfile returns a summary of a project's current phase.
func (m *Manager) GetProjectProfile(projectID string) (ProjectProfile, error) {
	project, ok, err := m.store.FetchProject(projectID)
	if err != nil {
		return ProjectProfile{}, err
	}
	if !ok {
		return ProjectProfile{}, ErrProjectNotFound
	}
	var vector []float64
	if project.CurrentPhase != "" {
		phase, ok, err := m.store.FetchPhase(project.CurrentPhase)
		if err != nil {
			return ProjectProfile{}, err
		}
		if ok {
			vector = phase.Vector
		}
	}
	return ProjectProfile{
		ProjectID:      project.ProjectID,
		CurrentPhase:   project.CurrentPhase,
		PhaseVectorDim: len(vector),
		PhaseVector:    vector,
	}, nil
}

// QueryVectorWeights is the configured role/user/phase blend.
type QueryVectorWeights struct {
	Role, User, Phase float64
}

// QueryVectorResult is the full diagnostic output of building a
// composite query vector, mirroring weighted_query_vector's return shape.
type QueryVectorResult struct {
	Vector              []float64
	Weights             QueryVectorWeights
	ComponentNorms       map[string]float64
	ComponentTopIndices  map[string][]int
	RoleID               string
	PhaseKey             string
}

// WeightedQueryVector blends role/user/phase vectors by w, renormalizing
// the role/user split when no phase vector is available. effectiveUser
// falls back to roleVec when userVec is empty, per the original's
// `user_vec or role_vec` semantics.
func WeightedQueryVector(roleVec, userVec, phaseVec []float64, w QueryVectorWeights) QueryVectorResult {
	effectiveUser := userVec
	if len(effectiveUser) == 0 {
		effectiveUser = roleVec
	}

	weights := w
	if phaseVec == nil {
		total := w.Role + w.User
		if total != 0 {
			weights.Role = w.Role / total
			weights.User = w.User / total
		}
		weights.Phase = 0.0
	}

	contribRole := scale(roleVec, weights.Role)
	contribUser := scale(effectiveUser, weights.User)
	var contribPhase []float64
	if phaseVec != nil {
		contribPhase = scale(phaseVec, weights.Phase)
	} else {
		contribPhase = make([]float64, len(roleVec))
	}

	combined := sumVectors(contribRole, contribUser, contribPhase)
	qVector := embed.Normalize(combined)

	return QueryVectorResult{
		Vector:  qVector,
		Weights: weights,
		ComponentNorms: map[string]float64{
			"role":  embed.L2Norm(contribRole),
			"user":  embed.L2Norm(contribUser),
			"phase": embed.L2Norm(contribPhase),
		},
		ComponentTopIndices: map[string][]int{
			"role":  topIndices(contribRole, 5),
			"user":  topIndices(contribUser, 5),
			"phase": topIndices(contribPhase, 5),
		},
	}
}

// GetQueryVector loads a user/project's role, user, and phase vectors
// and builds the composite query vector using w.
func (m *Manager) GetQueryVector(userID, projectID string, w QueryVectorWeights) (QueryVectorResult, error) {
	user, ok, err := m.store.FetchUser(userID)
	if err != nil {
		return QueryVectorResult{}, err
	}
	if !ok {
		return QueryVectorResult{}, ErrUserNotFound
	}
	project, ok, err := m.store.FetchProject(projectID)
	if err != nil {
		return QueryVectorResult{}, err
	}
	if !ok {
		return QueryVectorResult{}, ErrProjectNotFound
	}
	if user.RoleID == "" {
		return QueryVectorResult{}, ErrRoleNotFound
	}
	role, ok, err := m.store.FetchRole(user.RoleID)
	if err != nil {
		return QueryVectorResult{}, err
	}
	if !ok {
		return QueryVectorResult{}, ErrRoleNotFound
	}
	if len(role.Vector) == 0 {
		return QueryVectorResult{}, ErrRoleVectorMissing
	}

	var phaseVec []float64
	if project.CurrentPhase != "" {
		phase, ok, err := m.store.FetchPhase(project.CurrentPhase)
		if err != nil {
			return QueryVectorResult{}, err
		}
		if ok {
			phaseVec = phase.Vector
		}
	}

	result := WeightedQueryVector(role.Vector, user.Vector, phaseVec, w)
	result.RoleID = user.RoleID
	result.PhaseKey = project.CurrentPhase
	return result, nil
}

func scale(v []float64, w float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = w * x
	}
	return out
}

func sumVectors(vectors ...[]float64) []float64 {
	n := 0
	for _, v := range vectors {
		if len(v) > n {
			n = len(v)
		}
	}
	out := make([]float64, n)
	for _, v := range vectors {
		for i, x := range v {
			out[i] += x
		}
	}
	return out
}

func topIndices(v []float64, topK int) []int {
	type pair struct {
		idx int
		val float64
	}
	indexed := make([]pair, len(v))
	for i, x := range v {
		indexed[i] = pair{i, x}
	}
	sort.SliceStable(indexed, func(i, j int) bool {
		return absf(indexed[i].val) > absf(indexed[j].val)
	})
	if topK > len(indexed) {
		topK = len(indexed)
	}
	out := make([]int, topK)
	for i := 0; i < topK; i++ {
		out[i] = indexed[i].idx
	}
	return out
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
