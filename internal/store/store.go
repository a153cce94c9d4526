// Package store is the persistence adapter: a single SQLite database
// holding every entity in the data model, behind a typed CRUD surface.
// Aggregates and embeddings are recomputed wholesale rather than patched
// incrementally, so most writes here are upserts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection behind the entity CRUD operations the
// rest of threadwatch depends on. It is constructed once at startup and
// threaded explicitly through every component that needs it — there is no
// package-level singleton.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (or reuses) the SQLite database at path, applies the
// schema, and runs best-effort column migrations for older databases.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	_, _ = db.Exec(`ALTER TABLE messages ADD COLUMN is_deleted INTEGER DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE messages ADD COLUMN edited_at REAL`)
	_, _ = db.Exec(`ALTER TABLE digest_schedules ADD COLUMN last_digest_id TEXT`)
	_, _ = db.Exec(`ALTER TABLE digest_deliveries ADD COLUMN schedule_id TEXT`)
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for components (retrieval) that need
// to run ad-hoc joins the typed surface doesn't cover.
func (s *Store) DB() *sql.DB {
	return s.db
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// ---------------------------------------------------------------------------
// Raw events + dedupe
// ---------------------------------------------------------------------------

// InsertDedupe atomically records event_id as seen, returning true only on
// first sighting.
func (s *Store) InsertDedupe(eventID string) (bool, error) {
	res, err := s.db.Exec(`INSERT OR IGNORE INTO dedupe_events(event_id, received_at) VALUES (?, ?)`, eventID, now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// InsertRawEvent stores the opaque payload as provenance.
func (s *Store) InsertRawEvent(eventID, payloadJSON string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO raw_events(event_id, received_at, payload_json) VALUES (?, ?, ?)`,
		eventID, now(), payloadJSON,
	)
	return err
}

// FetchRawEvents returns the most recently received raw events, newest first.
func (s *Store) FetchRawEvents(limit int) ([]RawEvent, error) {
	rows, err := s.db.Query(`SELECT event_id, received_at, payload_json FROM raw_events ORDER BY received_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RawEvent
	for rows.Next() {
		var r RawEvent
		if err := rows.Scan(&r.EventID, &r.ReceivedAt, &r.PayloadJSON); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// InsertMessage inserts a message if (channel, ts) is new; returns whether
// it was actually inserted.
func (s *Store) InsertMessage(m Message) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO messages
		(channel, ts, thread_ts, user, text, reactions_json, is_deleted, edited_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?)`,
		m.Channel, m.TS, m.ThreadTS, nullable(m.User), nullable(m.Text), nullable(m.ReactionsJSON), now(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FetchMessage returns one message by its primary key.
func (s *Store) FetchMessage(channel, ts string) (*Message, bool, error) {
	row := s.db.QueryRow(`SELECT channel, ts, thread_ts, COALESCE(user,''), COALESCE(text,''), COALESCE(reactions_json,''), is_deleted, COALESCE(edited_at,0), COALESCE(created_at,0) FROM messages WHERE channel = ? AND ts = ?`, channel, ts)
	var m Message
	var isDeleted int
	if err := row.Scan(&m.Channel, &m.TS, &m.ThreadTS, &m.User, &m.Text, &m.ReactionsJSON, &isDeleted, &m.EditedAt, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	m.IsDeleted = isDeleted != 0
	return &m, true, nil
}

// MessagesForThread returns every message belonging to thread_ts, in
// chronological order by numeric ts.
func (s *Store) MessagesForThread(threadTS string) ([]Message, error) {
	rows, err := s.db.Query(`SELECT channel, ts, thread_ts, COALESCE(user,''), COALESCE(text,''), COALESCE(reactions_json,''), is_deleted, COALESCE(edited_at,0), COALESCE(created_at,0) FROM messages WHERE thread_ts = ? ORDER BY CAST(ts AS REAL) ASC`, threadTS)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		var isDeleted int
		if err := rows.Scan(&m.Channel, &m.TS, &m.ThreadTS, &m.User, &m.Text, &m.ReactionsJSON, &isDeleted, &m.EditedAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.IsDeleted = isDeleted != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMessageText rewrites a message's text, stamping edited_at and
// clearing is_deleted.
func (s *Store) UpdateMessageText(channel, ts, text string) error {
	_, err := s.db.Exec(`UPDATE messages SET text = ?, edited_at = ?, is_deleted = 0 WHERE channel = ? AND ts = ?`, text, now(), channel, ts)
	return err
}

// MarkMessageDeleted tombstones a message without removing its row.
func (s *Store) MarkMessageDeleted(channel, ts string) error {
	_, err := s.db.Exec(`UPDATE messages SET is_deleted = 1, edited_at = ? WHERE channel = ? AND ts = ?`, now(), channel, ts)
	return err
}

// UpdateMessageReactions applies a signed delta to one reaction's count,
// clamped at zero, appending a new entry when absent and delta is positive,
// and dropping entries that reach zero.
func (s *Store) UpdateMessageReactions(channel, ts, reaction string, delta int) error {
	m, ok, err := s.FetchMessage(channel, ts)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var reactions []Reaction
	if m.ReactionsJSON != "" {
		_ = json.Unmarshal([]byte(m.ReactionsJSON), &reactions)
	}
	found := false
	for i := range reactions {
		if reactions[i].Name == reaction {
			reactions[i].Count += delta
			if reactions[i].Count < 0 {
				reactions[i].Count = 0
			}
			found = true
			break
		}
	}
	if !found && delta > 0 {
		reactions = append(reactions, Reaction{Name: reaction, Count: 1})
	}
	kept := reactions[:0]
	for _, r := range reactions {
		if r.Count > 0 {
			kept = append(kept, r)
		}
	}
	buf, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE messages SET reactions_json = ? WHERE channel = ? AND ts = ?`, string(buf), channel, ts)
	return err
}

// ---------------------------------------------------------------------------
// Threads
// ---------------------------------------------------------------------------

// FetchThread returns the aggregate record for a thread, if present.
func (s *Store) FetchThread(threadTS string) (*Thread, bool, error) {
	row := s.db.QueryRow(`SELECT thread_ts, channel, root_ts, COALESCE(created_at,0), COALESCE(last_activity,0), COALESCE(reply_count,0), COALESCE(reaction_count,0), COALESCE(participants_json,'[]') FROM threads WHERE thread_ts = ?`, threadTS)
	var t Thread
	var participantsJSON string
	if err := row.Scan(&t.ThreadTS, &t.Channel, &t.RootTS, &t.CreatedAt, &t.LastActivity, &t.ReplyCount, &t.ReactionCount, &participantsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	_ = json.Unmarshal([]byte(participantsJSON), &t.Participants)
	return &t, true, nil
}

// UpsertThread writes the full recomputed aggregate for a thread.
func (s *Store) UpsertThread(t Thread) error {
	participants := append([]string(nil), t.Participants...)
	sort.Strings(participants)
	buf, err := json.Marshal(dedupSorted(participants))
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO threads (thread_ts, channel, root_ts, created_at, last_activity, reply_count, reaction_count, participants_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_ts) DO UPDATE SET
			last_activity=excluded.last_activity,
			reply_count=excluded.reply_count,
			reaction_count=excluded.reaction_count,
			participants_json=excluded.participants_json
	`, t.ThreadTS, t.Channel, t.RootTS, t.CreatedAt, t.LastActivity, t.ReplyCount, t.ReactionCount, string(buf))
	return err
}

// FetchThreads returns recently active threads, newest first.
func (s *Store) FetchThreads(limit int) ([]Thread, error) {
	rows, err := s.db.Query(`SELECT thread_ts, channel, root_ts, COALESCE(created_at,0), COALESCE(last_activity,0), COALESCE(reply_count,0), COALESCE(reaction_count,0), COALESCE(participants_json,'[]') FROM threads ORDER BY last_activity DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Thread
	for rows.Next() {
		var t Thread
		var participantsJSON string
		if err := rows.Scan(&t.ThreadTS, &t.Channel, &t.RootTS, &t.CreatedAt, &t.LastActivity, &t.ReplyCount, &t.ReactionCount, &participantsJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(participantsJSON), &t.Participants)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Digest items
// ---------------------------------------------------------------------------

// UpsertDigestItem writes the recomputed enrichment for a thread.
func (s *Store) UpsertDigestItem(item DigestItem) error {
	labels := dedupSorted(item.Labels)
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return err
	}
	entitiesJSON, err := json.Marshal(item.Entities)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO digest_items (thread_ts, channel, title, labels_json, entities_json, urgency, summary, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_ts) DO UPDATE SET
			title=excluded.title,
			labels_json=excluded.labels_json,
			entities_json=excluded.entities_json,
			urgency=excluded.urgency,
			summary=excluded.summary,
			updated_at=excluded.updated_at
	`, item.ThreadTS, item.Channel, item.Title, string(labelsJSON), string(entitiesJSON), item.Urgency, item.Summary, now())
	return err
}

// FetchItems returns recently updated digest items, newest first.
func (s *Store) FetchItems(limit int) ([]DigestItem, error) {
	rows, err := s.db.Query(`SELECT thread_ts, channel, title, labels_json, entities_json, urgency, summary, updated_at FROM digest_items ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DigestItem
	for rows.Next() {
		item, err := scanDigestItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// FetchDigestItem returns the digest item for a single thread, if any.
func (s *Store) FetchDigestItem(threadTS string) (DigestItem, bool, error) {
	row := s.db.QueryRow(`SELECT thread_ts, channel, title, labels_json, entities_json, urgency, summary, updated_at FROM digest_items WHERE thread_ts = ?`, threadTS)
	item, err := scanDigestItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return DigestItem{}, false, nil
		}
		return DigestItem{}, false, err
	}
	return item, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDigestItem(row rowScanner) (DigestItem, error) {
	var item DigestItem
	var labelsJSON, entitiesJSON string
	if err := row.Scan(&item.ThreadTS, &item.Channel, &item.Title, &labelsJSON, &entitiesJSON, &item.Urgency, &item.Summary, &item.UpdatedAt); err != nil {
		return DigestItem{}, err
	}
	_ = json.Unmarshal([]byte(labelsJSON), &item.Labels)
	_ = json.Unmarshal([]byte(entitiesJSON), &item.Entities)
	return item, nil
}

// ---------------------------------------------------------------------------
// Embeddings
// ---------------------------------------------------------------------------

// UpsertEmbedding writes the recomputed vector for a thread.
func (s *Store) UpsertEmbedding(threadTS string, vector []float64) error {
	buf, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO embeddings(thread_ts, dim, vector_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_ts) DO UPDATE SET
			dim=excluded.dim,
			vector_json=excluded.vector_json,
			updated_at=excluded.updated_at
	`, threadTS, len(vector), string(buf), now())
	return err
}

// FetchEmbedding returns the stored embedding for a thread, if present.
func (s *Store) FetchEmbedding(threadTS string) (*Embedding, bool, error) {
	row := s.db.QueryRow(`SELECT thread_ts, dim, vector_json, updated_at FROM embeddings WHERE thread_ts = ?`, threadTS)
	var e Embedding
	var vectorJSON string
	if err := row.Scan(&e.ThreadTS, &e.Dim, &vectorJSON, &e.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	_ = json.Unmarshal([]byte(vectorJSON), &e.Vector)
	return &e, true, nil
}

// ---------------------------------------------------------------------------
// Job metrics
// ---------------------------------------------------------------------------

// IncrementMetric bumps the processed count for a queue.
func (s *Store) IncrementMetric(queueName string) error {
	_, err := s.db.Exec(`
		INSERT INTO job_metrics(queue_name, processed_count, last_processed_at)
		VALUES (?, 1, ?)
		ON CONFLICT(queue_name) DO UPDATE SET
			processed_count = processed_count + 1,
			last_processed_at = excluded.last_processed_at
	`, queueName, now())
	return err
}

// FetchMetrics returns every queue's processed-count row.
func (s *Store) FetchMetrics() (map[string]JobMetric, error) {
	rows, err := s.db.Query(`SELECT queue_name, processed_count, last_processed_at FROM job_metrics`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]JobMetric{}
	for rows.Next() {
		var m JobMetric
		if err := rows.Scan(&m.QueueName, &m.ProcessedCount, &m.LastProcessedAt); err != nil {
			return nil, err
		}
		out[m.QueueName] = m
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Roles, phases, projects, users
// ---------------------------------------------------------------------------

// UpsertRole writes a role's description and embedded vector.
func (s *Store) UpsertRole(roleID, name, description string, vector []float64) error {
	buf, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO roles(role_id, name, description, role_vector_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(role_id) DO UPDATE SET
			name=excluded.name, description=excluded.description,
			role_vector_json=excluded.role_vector_json, updated_at=excluded.updated_at
	`, roleID, name, description, string(buf), now())
	return err
}

// FetchRole returns a role by id, if present.
func (s *Store) FetchRole(roleID string) (*Role, bool, error) {
	row := s.db.QueryRow(`SELECT role_id, name, description, role_vector_json, updated_at FROM roles WHERE role_id = ?`, roleID)
	var r Role
	var vectorJSON string
	if err := row.Scan(&r.RoleID, &r.Name, &r.Description, &vectorJSON, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	_ = json.Unmarshal([]byte(vectorJSON), &r.Vector)
	return &r, true, nil
}

// UpsertPhase writes a phase's description and embedded vector.
func (s *Store) UpsertPhase(phaseKey, description string, vector []float64) error {
	buf, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO phases(phase_key, description, phase_vector_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(phase_key) DO UPDATE SET
			description=excluded.description, phase_vector_json=excluded.phase_vector_json, updated_at=excluded.updated_at
	`, phaseKey, description, string(buf), now())
	return err
}

// FetchPhase returns a phase by key, if present.
func (s *Store) FetchPhase(phaseKey string) (*Phase, bool, error) {
	row := s.db.QueryRow(`SELECT phase_key, description, phase_vector_json, updated_at FROM phases WHERE phase_key = ?`, phaseKey)
	var p Phase
	var vectorJSON string
	if err := row.Scan(&p.PhaseKey, &p.Description, &vectorJSON, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	_ = json.Unmarshal([]byte(vectorJSON), &p.Vector)
	return &p, true, nil
}

// UpsertProject creates or updates a project's name and current phase.
func (s *Store) UpsertProject(projectID, name, currentPhase string) error {
	ts := now()
	_, err := s.db.Exec(`
		INSERT INTO projects(project_id, name, current_phase, channels_json, created_at, updated_at)
		VALUES (?, ?, ?, '[]', ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			name=excluded.name, current_phase=excluded.current_phase, updated_at=excluded.updated_at
	`, projectID, name, currentPhase, ts, ts)
	return err
}

// UpdateProjectPhase advances a project's current lifecycle phase.
func (s *Store) UpdateProjectPhase(projectID, phaseKey string) error {
	_, err := s.db.Exec(`UPDATE projects SET current_phase = ?, updated_at = ? WHERE project_id = ?`, phaseKey, now(), projectID)
	return err
}

// FetchProject returns a project by id, if present.
func (s *Store) FetchProject(projectID string) (*Project, bool, error) {
	row := s.db.QueryRow(`SELECT project_id, name, COALESCE(current_phase,''), created_at, updated_at FROM projects WHERE project_id = ?`, projectID)
	var p Project
	if err := row.Scan(&p.ProjectID, &p.Name, &p.CurrentPhase, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	channels, err := s.FetchProjectChannels(projectID)
	if err != nil {
		return nil, false, err
	}
	p.Channels = channels
	return &p, true, nil
}

// UpsertUser creates or updates a user's profile and vector.
func (s *Store) UpsertUser(userID, name, email, roleID string, vector []float64) error {
	ts := now()
	var vectorJSON any
	if vector != nil {
		buf, err := json.Marshal(vector)
		if err != nil {
			return err
		}
		vectorJSON = string(buf)
	}
	_, err := s.db.Exec(`
		INSERT INTO users(user_id, name, email, role_id, user_vector_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name=excluded.name, email=excluded.email, role_id=excluded.role_id,
			user_vector_json=excluded.user_vector_json, updated_at=excluded.updated_at
	`, userID, name, nullable(email), nullable(roleID), vectorJSON, ts, ts)
	return err
}

// UpdateUserRole reassigns a user's role, resetting their vector to the
// new role's vector.
func (s *Store) UpdateUserRole(userID, roleID string, vector []float64) error {
	buf, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE users SET role_id = ?, user_vector_json = ?, updated_at = ? WHERE user_id = ?`, roleID, string(buf), now(), userID)
	return err
}

// UpdateUserVector persists a feedback-updated user vector.
func (s *Store) UpdateUserVector(userID string, vector []float64) error {
	buf, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`UPDATE users SET user_vector_json = ?, updated_at = ? WHERE user_id = ?`, string(buf), now(), userID)
	return err
}

// FetchUser returns a user by id, if present.
func (s *Store) FetchUser(userID string) (*User, bool, error) {
	row := s.db.QueryRow(`SELECT user_id, name, COALESCE(email,''), COALESCE(role_id,''), COALESCE(user_vector_json,''), created_at, updated_at FROM users WHERE user_id = ?`, userID)
	var u User
	var vectorJSON string
	if err := row.Scan(&u.UserID, &u.Name, &u.Email, &u.RoleID, &vectorJSON, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	if vectorJSON != "" {
		_ = json.Unmarshal([]byte(vectorJSON), &u.Vector)
	}
	return &u, true, nil
}

// AddUserProject records project membership for a user.
func (s *Store) AddUserProject(userID, projectID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO user_project(user_id, project_id) VALUES (?, ?)`, userID, projectID)
	return err
}

// FetchUserProjects returns the projects a user belongs to.
func (s *Store) FetchUserProjects(userID string) ([]Project, error) {
	rows, err := s.db.Query(`
		SELECT p.project_id, p.name, COALESCE(p.current_phase,''), p.created_at, p.updated_at
		FROM projects p JOIN user_project up ON up.project_id = p.project_id
		WHERE up.user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ProjectID, &p.Name, &p.CurrentPhase, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Channel mappings
// ---------------------------------------------------------------------------

// AddProjectChannel maps a channel to a project.
func (s *Store) AddProjectChannel(projectID, channelID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO project_channels(project_id, channel_id) VALUES (?, ?)`, projectID, channelID)
	return err
}

// AddUserChannel maps a channel to a user.
func (s *Store) AddUserChannel(userID, channelID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO user_channels(user_id, channel_id) VALUES (?, ?)`, userID, channelID)
	return err
}

// FetchProjectChannels lists the channel ids mapped to a project.
func (s *Store) FetchProjectChannels(projectID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT channel_id FROM project_channels WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FetchUserChannels lists the channel ids mapped to a user.
func (s *Store) FetchUserChannels(userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT channel_id FROM user_channels WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Digests & interactions
// ---------------------------------------------------------------------------

// InsertDigest persists an immutable snapshot of a built digest.
func (s *Store) InsertDigest(digestID, userID, projectID, itemsJSON string) error {
	_, err := s.db.Exec(`INSERT INTO digests(digest_id, user_id, project_id, created_at, items_json) VALUES (?, ?, ?, ?, ?)`, digestID, userID, projectID, now(), itemsJSON)
	return err
}

// FetchDigest returns a digest snapshot by id, if present.
func (s *Store) FetchDigest(digestID string) (*Digest, bool, error) {
	row := s.db.QueryRow(`SELECT digest_id, user_id, project_id, created_at, items_json FROM digests WHERE digest_id = ?`, digestID)
	var d Digest
	if err := row.Scan(&d.DigestID, &d.UserID, &d.ProjectID, &d.CreatedAt, &d.ItemsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &d, true, nil
}

// InsertInteraction appends a feedback event.
func (s *Store) InsertInteraction(interactionID, userID, projectID, threadTS, action string) error {
	_, err := s.db.Exec(`INSERT INTO interactions(interaction_id, user_id, project_id, thread_ts, action, created_at) VALUES (?, ?, ?, ?, ?, ?)`, interactionID, userID, projectID, threadTS, action, now())
	return err
}

// ---------------------------------------------------------------------------
// Slack workspaces
// ---------------------------------------------------------------------------

// UpsertWorkspace stores (or refreshes) the bot token for a Slack team.
func (s *Store) UpsertWorkspace(teamID, accessToken, botUserID string, scopes []string) error {
	buf, err := json.Marshal(scopes)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO slack_workspaces(team_id, access_token, bot_user_id, installed_at, scopes_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(team_id) DO UPDATE SET
			access_token=excluded.access_token, bot_user_id=excluded.bot_user_id,
			installed_at=excluded.installed_at, scopes_json=excluded.scopes_json
	`, teamID, accessToken, botUserID, now(), string(buf))
	return err
}

// FetchWorkspace returns the installed workspace token for a team, if present.
func (s *Store) FetchWorkspace(teamID string) (*Workspace, bool, error) {
	row := s.db.QueryRow(`SELECT team_id, access_token, COALESCE(bot_user_id,''), installed_at, scopes_json FROM slack_workspaces WHERE team_id = ?`, teamID)
	var w Workspace
	var scopesJSON string
	if err := row.Scan(&w.TeamID, &w.AccessToken, &w.BotUserID, &w.InstalledAt, &scopesJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	_ = json.Unmarshal([]byte(scopesJSON), &w.Scopes)
	return &w, true, nil
}

// ---------------------------------------------------------------------------
// Schedules & deliveries
// ---------------------------------------------------------------------------

// InsertSchedule creates a new recurring-delivery schedule.
func (s *Store) InsertSchedule(sch Schedule) error {
	enabled := 0
	if sch.IsEnabled {
		enabled = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO digest_schedules(schedule_id, team_id, project_id, user_id, time_of_day, timezone, is_enabled, last_digest_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sch.ScheduleID, sch.TeamID, sch.ProjectID, sch.UserID, sch.TimeOfDay, sch.Timezone, enabled, sch.LastDigestID, now())
	return err
}

// FetchSchedules returns every configured schedule.
func (s *Store) FetchSchedules() ([]Schedule, error) {
	rows, err := s.db.Query(`SELECT schedule_id, team_id, project_id, user_id, time_of_day, timezone, is_enabled, COALESCE(last_digest_id,''), created_at FROM digest_schedules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Schedule
	for rows.Next() {
		var sch Schedule
		var enabled int
		if err := rows.Scan(&sch.ScheduleID, &sch.TeamID, &sch.ProjectID, &sch.UserID, &sch.TimeOfDay, &sch.Timezone, &enabled, &sch.LastDigestID, &sch.CreatedAt); err != nil {
			return nil, err
		}
		sch.IsEnabled = enabled != 0
		out = append(out, sch)
	}
	return out, rows.Err()
}

// FetchSchedule returns one schedule by id, if present.
func (s *Store) FetchSchedule(scheduleID string) (*Schedule, bool, error) {
	row := s.db.QueryRow(`SELECT schedule_id, team_id, project_id, user_id, time_of_day, timezone, is_enabled, COALESCE(last_digest_id,''), created_at FROM digest_schedules WHERE schedule_id = ?`, scheduleID)
	var sch Schedule
	var enabled int
	if err := row.Scan(&sch.ScheduleID, &sch.TeamID, &sch.ProjectID, &sch.UserID, &sch.TimeOfDay, &sch.Timezone, &enabled, &sch.LastDigestID, &sch.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	sch.IsEnabled = enabled != 0
	return &sch, true, nil
}

// SetScheduleLastDigest records which digest a schedule most recently produced.
func (s *Store) SetScheduleLastDigest(scheduleID, digestID string) error {
	_, err := s.db.Exec(`UPDATE digest_schedules SET last_digest_id = ? WHERE schedule_id = ?`, digestID, scheduleID)
	return err
}

// InsertDelivery appends a delivery attempt record.
func (s *Store) InsertDelivery(d Delivery) error {
	_, err := s.db.Exec(`
		INSERT INTO digest_deliveries(delivery_id, digest_id, schedule_id, team_id, user_id, delivered_at, status, slack_ts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.DeliveryID, d.DigestID, nullable(d.ScheduleID), d.TeamID, d.UserID, now(), d.Status, nullable(d.SlackTS), nullable(d.Error))
	return err
}

// FetchDeliveryByDigest returns the delivery for a digest id, if one exists
// (digest_id is effectively unique: deliver_digest only ever inserts once
// per digest).
func (s *Store) FetchDeliveryByDigest(digestID string) (*Delivery, bool, error) {
	row := s.db.QueryRow(`SELECT delivery_id, digest_id, COALESCE(schedule_id,''), team_id, user_id, delivered_at, status, COALESCE(slack_ts,''), COALESCE(error,'') FROM digest_deliveries WHERE digest_id = ?`, digestID)
	return scanDelivery(row)
}

// HasDeliveryInWindow reports whether a delivery for (team_id,
// project_id, user_id) already exists with delivered_at in
// [minuteStart, minuteEnd) — the scheduler's current-local-minute
// due-check.
func (s *Store) HasDeliveryInWindow(teamID, projectID, userID string, minuteStart, minuteEnd float64) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM digest_deliveries dd
		JOIN digests d ON d.digest_id = dd.digest_id
		WHERE dd.team_id = ? AND dd.user_id = ? AND d.project_id = ?
		AND dd.delivered_at >= ? AND dd.delivered_at < ?
	`, teamID, userID, projectID, minuteStart, minuteEnd).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanDelivery(row rowScanner) (*Delivery, bool, error) {
	var d Delivery
	if err := row.Scan(&d.DeliveryID, &d.DigestID, &d.ScheduleID, &d.TeamID, &d.UserID, &d.DeliveredAt, &d.Status, &d.SlackTS, &d.Error); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &d, true, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func dedupSorted(items []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
