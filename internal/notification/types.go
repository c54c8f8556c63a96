// Package notification provides the client-side notification record store for
// the alert watcher. It holds bounded, in-memory notification history with
// read tracking; nothing here is persisted server-side.
package notification

import (
	"sort"
	"sync"
	"time"

	"github.com/deepsentry/deepsentry-go/internal/errors"
	"github.com/google/uuid"
)

// Type represents the category of a notification
type Type string

const (
	// TypeHighConfidence indicates a detection above the confidence floor
	TypeHighConfidence Type = "high_confidence"
	// TypeSpike indicates anomalous daily detection volume
	TypeSpike Type = "spike"
	// TypeVerified indicates a manually verified detection
	TypeVerified Type = "verified"
	// TypePlatform indicates a detection on a watched platform
	TypePlatform Type = "platform"
)

// Priority represents the urgency level of a notification
type Priority string

const (
	// PriorityCritical indicates urgent attention required
	PriorityCritical Priority = "critical"
	// PriorityHigh indicates important but not urgent
	PriorityHigh Priority = "high"
	// PriorityMedium indicates normal priority
	PriorityMedium Priority = "medium"
	// PriorityLow indicates low priority/informational
	PriorityLow Priority = "low"
)

// Sentinel errors for notification operations
var (
	ErrNotificationNotFound = errors.Newf("notification not found").Component("notification").Category(errors.CategoryNotFound).Build()
)

// Notification represents a single notification event
type Notification struct {
	// ID is the unique identifier for the notification
	ID string `json:"id"`
	// Type categorizes the notification
	Type Type `json:"type"`
	// Priority indicates the urgency level
	Priority Priority `json:"priority"`
	// Title is a short summary of the notification
	Title string `json:"title"`
	// Message provides detailed information
	Message string `json:"message"`
	// Timestamp indicates when the notification was created
	Timestamp time.Time `json:"timestamp"`
	// Read tracks whether the notification has been seen
	Read bool `json:"read"`
	// Payload carries opaque context-specific data
	Payload map[string]any `json:"payload,omitempty"`
}

// NewNotification creates a new notification with a unique ID and timestamp
func NewNotification(notifType Type, priority Priority, title, message string) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		Type:      notifType,
		Priority:  priority,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithPayload adds payload data and returns the notification for chaining
func (n *Notification) WithPayload(key string, value any) *Notification {
	if n.Payload == nil {
		n.Payload = make(map[string]any)
	}
	n.Payload[key] = value
	return n
}

// Store provides a thread-safe, bounded in-memory notification store. When
// the store is full the oldest notification is evicted.
type Store struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
	maxSize       int
	unreadCount   int
}

// NewStore creates a notification store retaining at most maxSize entries.
func NewStore(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &Store{
		notifications: make(map[string]*Notification),
		maxSize:       maxSize,
	}
}

// Save stores a notification, evicting the oldest entry when full.
func (s *Store) Save(notification *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.notifications) >= s.maxSize {
		s.removeOldest()
	}

	s.notifications[notification.ID] = notification
	if !notification.Read {
		s.unreadCount++
	}
	return nil
}

// Get retrieves a notification by ID.
func (s *Store) Get(id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if notif, exists := s.notifications[id]; exists {
		// Return a copy so callers cannot mutate stored state
		notifCopy := *notif
		return &notifCopy, nil
	}
	return nil, ErrNotificationNotFound
}

// List returns all notifications, newest first.
func (s *Store) List() []*Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*Notification, 0, len(s.notifications))
	for _, notif := range s.notifications {
		notifCopy := *notif
		results = append(results, &notifCopy)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	return results
}

// MarkRead marks a notification as read.
func (s *Store) MarkRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notif, exists := s.notifications[id]
	if !exists {
		return ErrNotificationNotFound
	}
	if !notif.Read {
		notif.Read = true
		s.unreadCount--
	}
	return nil
}

// UnreadCount returns the count of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadCount
}

// Len returns the number of stored notifications.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifications)
}

// removeOldest removes the oldest notification to make room. Caller must hold
// the write lock.
func (s *Store) removeOldest() {
	var oldestID string
	var oldestTime time.Time

	for id, notif := range s.notifications {
		if oldestID == "" || notif.Timestamp.Before(oldestTime) {
			oldestID = id
			oldestTime = notif.Timestamp
		}
	}

	if oldestID != "" {
		if notif := s.notifications[oldestID]; !notif.Read {
			s.unreadCount--
		}
		delete(s.notifications, oldestID)
	}
}
