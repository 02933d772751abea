package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/managemate/mmrt/pkg/events"
	"github.com/managemate/mmrt/pkg/storage"
	"github.com/managemate/mmrt/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Load tasks, users and notifications from a YAML file into the store",
	Long: `Apply resources from a YAML file to the local task store.
Documents are separated by "---". Existing records with the same id are
replaced. Dates use RFC 3339.

Examples:
  # Seed two overlapping tasks and run detection
  mmrt apply -f seed.yaml
  mmrt detect-conflicts

  # seed.yaml
  kind: Task
  metadata:
    name: t1
  spec:
    title: Write release notes
    assigneeIds: [u1]
    status: in-progress
    startDate: 2026-05-04T09:00:00Z
    deadline: 2026-05-04T17:00:00Z`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// Resource is one YAML document
type Resource struct {
	Kind     string           `yaml:"kind"`
	Metadata ResourceMetadata `yaml:"metadata"`
	Spec     map[string]any   `yaml:"spec"`
}

type ResourceMetadata struct {
	Name string `yaml:"name"`
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	resources, err := decodeResources(f)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	for _, r := range resources {
		id, err := applyResource(store, r)
		if err != nil {
			return fmt.Errorf("%s %s: %w", r.Kind, r.Metadata.Name, err)
		}
		fmt.Printf("✓ %s applied: %s\n", r.Kind, id)
	}
	return nil
}

// decodeResources reads every YAML document from r
func decodeResources(r io.Reader) ([]*Resource, error) {
	dec := yaml.NewDecoder(r)
	var out []*Resource
	for {
		var res Resource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if res.Kind == "" {
			continue
		}
		out = append(out, &res)
	}
}

func applyResource(store storage.Store, r *Resource) (string, error) {
	switch r.Kind {
	case "Task":
		var task types.Task
		if err := decodeSpec(r, &task); err != nil {
			return "", err
		}
		task.ID = firstNonEmpty(task.ID, r.Metadata.Name)
		if task.Status == "" {
			task.Status = types.TaskStatusTodo
		}
		return task.ID, store.UpdateTask(&task)

	case "User":
		var user types.User
		if err := decodeSpec(r, &user); err != nil {
			return "", err
		}
		user.ID = firstNonEmpty(user.ID, r.Metadata.Name)
		return user.ID, store.CreateUser(&user)

	case "Notification":
		var n types.Notification
		if err := decodeSpec(r, &n); err != nil {
			return "", err
		}
		n.ID = firstNonEmpty(n.ID, r.Metadata.Name, uuid.NewString())
		if n.Severity == "" {
			n.Severity = types.SeverityMedium
		}
		return n.ID, store.CreateNotification(&n)

	default:
		return "", fmt.Errorf("unsupported resource kind: %s", r.Kind)
	}
}

// decodeSpec converts the YAML spec into v through its JSON form, so the
// domain types' JSON names apply
func decodeSpec(r *Resource, v any) error {
	data, err := json.Marshal(r.Spec)
	if err != nil {
		return fmt.Errorf("invalid spec: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid spec: %w", err)
	}
	return nil
}

// eventChannels maps publishable kinds to their broker channel
var eventChannels = map[string]events.Channel{
	"Notification": events.ChannelNotifications,
	"ChatMessage":  events.ChannelChat,
	"Conflict":     events.ChannelConflicts,
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
