package store

// RawEvent is the opaque, never-mutated provenance record for an inbound event.
type RawEvent struct {
	EventID     string
	ReceivedAt  float64
	PayloadJSON string
}

// Reaction is an emoji reaction with a non-negative count.
type Reaction struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Message is keyed by (Channel, TS) and belongs to exactly one thread.
type Message struct {
	Channel       string
	TS            string
	ThreadTS      string
	User          string
	Text          string
	ReactionsJSON string
	IsDeleted     bool
	EditedAt      float64
	CreatedAt     float64
}

// Thread is the derived aggregate over a message set, keyed by ThreadTS.
type Thread struct {
	ThreadTS       string
	Channel        string
	RootTS         string
	CreatedAt      float64
	LastActivity   float64
	ReplyCount     int
	ReactionCount  int
	Participants   []string
}

// Entities is the five named lists extracted from a thread's text.
type Entities struct {
	Materials []string `json:"materials"`
	Phases    []string `json:"phases"`
	Deadlines []string `json:"deadlines"`
	Vendors   []string `json:"vendors"`
	LeadTimes []string `json:"lead_times"`
}

// DigestItem is the enriched view of a thread, keyed by ThreadTS.
type DigestItem struct {
	ThreadTS  string
	Channel   string
	Title     string
	Labels    []string
	Entities  Entities
	Urgency   float64
	Summary   string
	UpdatedAt float64
}

// Embedding is the unit-norm vector representation of a thread's text.
type Embedding struct {
	ThreadTS  string
	Dim       int
	Vector    []float64
	UpdatedAt float64
}

// Role carries a description and its embedded unit-norm vector.
type Role struct {
	RoleID      string
	Name        string
	Description string
	Vector      []float64
	UpdatedAt   float64
}

// Phase carries a description and its embedded unit-norm vector.
type Phase struct {
	PhaseKey    string
	Description string
	Vector      []float64
	UpdatedAt   float64
}

// Project ties a current lifecycle phase to a set of channel ids.
type Project struct {
	ProjectID    string
	Name         string
	CurrentPhase string
	Channels     []string
	CreatedAt    float64
	UpdatedAt    float64
}

// User carries a role assignment and an online-updated vector.
type User struct {
	UserID    string
	Name      string
	Email     string
	RoleID    string
	Vector    []float64
	CreatedAt float64
	UpdatedAt float64
}

// Digest is an immutable snapshot of ranked items delivered or inspectable later.
type Digest struct {
	DigestID  string
	UserID    string
	ProjectID string
	CreatedAt float64
	ItemsJSON string
}

// Interaction is an append-only feedback event.
type Interaction struct {
	InteractionID string
	UserID        string
	ProjectID     string
	ThreadTS      string
	Action        string
	CreatedAt     float64
}

// Workspace holds the bot token issued for a Slack team.
type Workspace struct {
	TeamID       string
	AccessToken  string
	BotUserID    string
	InstalledAt  float64
	Scopes       []string
}

// Schedule describes a recurring digest delivery for one user/project.
type Schedule struct {
	ScheduleID   string
	TeamID       string
	ProjectID    string
	UserID       string
	TimeOfDay    string
	Timezone     string
	IsEnabled    bool
	LastDigestID string
	CreatedAt    float64
}

// Delivery is an append-only record of one digest delivery attempt.
type Delivery struct {
	DeliveryID  string
	DigestID    string
	ScheduleID  string
	TeamID      string
	UserID      string
	DeliveredAt float64
	Status      string
	SlackTS     string
	Error       string
}

// JobMetric tracks per-queue processed counts for /queues/status.
type JobMetric struct {
	QueueName        string
	ProcessedCount    int
	LastProcessedAt  float64
}
