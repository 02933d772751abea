package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/managemate/mmrt/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketTasks         = []byte("tasks")
	bucketNotifications = []byte("notifications")
	bucketUsers         = []byte("users")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "mmrt.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTasks, bucketNotifications, bucketUsers} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is open and its buckets are present
func (s *BoltStore) Ping() error {
	return s.db.View(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTasks, bucketNotifications, bucketUsers} {
			if tx.Bucket(bucket) == nil {
				return fmt.Errorf("bucket %s missing", bucket)
			}
		}
		return nil
	})
}

func put(tx *bolt.Tx, bucket []byte, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(id), data)
}

func get(tx *bolt.Tx, bucket []byte, kind, id string, v any) error {
	data := tx.Bucket(bucket).Get([]byte(id))
	if data == nil {
		return fmt.Errorf("%s %s: %w", kind, id, types.ErrNotFound)
	}
	return json.Unmarshal(data, v)
}

// Task operations
func (s *BoltStore) CreateTask(task *types.Task) error {
	if task.ID == "" {
		return fmt.Errorf("task id is required")
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketTasks, task.ID, task)
	})
}

func (s *BoltStore) GetTask(id string) (*types.Task, error) {
	var task types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, bucketTasks, "task", id, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *BoltStore) UpdateTask(task *types.Task) error {
	return s.CreateTask(task) // upsert
}

// ListTasksPage returns up to limit tasks with keys strictly after afterID.
// Undecodable records are reported in Corrupt instead of failing the page.
func (s *BoltStore) ListTasksPage(afterID string, limit int) (*TaskPage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid page size %d", limit)
	}

	page := &TaskPage{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketTasks).Cursor()

		var k, v []byte
		if afterID == "" {
			k, v = c.First()
		} else {
			k, v = c.Seek([]byte(afterID))
			if k != nil && bytes.Equal(k, []byte(afterID)) {
				k, v = c.Next()
			}
		}

		seen := 0
		var last []byte
		for ; k != nil && seen < limit; k, v = c.Next() {
			seen++
			last = k
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				page.Corrupt = append(page.Corrupt, string(k))
				continue
			}
			page.Tasks = append(page.Tasks, &task)
		}

		if k != nil && last != nil {
			page.Next = string(last)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// PatchTaskConflict rewrites only the derived conflict fields of a task
func (s *BoltStore) PatchTaskConflict(id string, hasConflict bool, conflictsWith []string) (*types.Task, error) {
	var task types.Task
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := get(tx, bucketTasks, "task", id, &task); err != nil {
			return err
		}
		task.HasConflict = hasConflict
		task.ConflictsWith = conflictsWith
		task.UpdatedAt = time.Now().UTC()
		return put(tx, bucketTasks, id, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// AssignTask replaces the assignees of a task
func (s *BoltStore) AssignTask(id string, assigneeIDs []string) (*types.Task, error) {
	var task types.Task
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := get(tx, bucketTasks, "task", id, &task); err != nil {
			return err
		}
		task.AssigneeIDs = assigneeIDs
		task.UpdatedAt = time.Now().UTC()
		return put(tx, bucketTasks, id, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// Notification operations
func (s *BoltStore) CreateNotification(n *types.Notification) error {
	if n.ID == "" {
		return fmt.Errorf("notification id is required")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketNotifications, n.ID, n)
	})
}

func (s *BoltStore) GetNotification(id string) (*types.Notification, error) {
	var n types.Notification
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, bucketNotifications, "notification", id, &n)
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ListPendingCritical returns unread high or critical notifications not yet emailed
func (s *BoltStore) ListPendingCritical() ([]*types.Notification, error) {
	var pending []*types.Notification
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotifications).ForEach(func(k, v []byte) error {
			var n types.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				// skip records the digest cannot use
				return nil
			}
			if !n.Read && n.EmailedAt == nil && n.Severity.Critical() {
				pending = append(pending, &n)
			}
			return nil
		})
	})
	return pending, err
}

func (s *BoltStore) MarkNotificationsEmailed(ids []string, at time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, id := range ids {
			var n types.Notification
			if err := get(tx, bucketNotifications, "notification", id, &n); err != nil {
				return err
			}
			emailedAt := at
			n.EmailedAt = &emailedAt
			if err := put(tx, bucketNotifications, id, &n); err != nil {
				return err
			}
		}
		return nil
	})
}

// User operations
func (s *BoltStore) CreateUser(user *types.User) error {
	if user.ID == "" {
		return fmt.Errorf("user id is required")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketUsers, user.ID, user)
	})
}

func (s *BoltStore) GetUser(id string) (*types.User, error) {
	var user types.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, bucketUsers, "user", id, &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
