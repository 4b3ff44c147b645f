package state

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/ant-controller/internal/config"
)

// Selections is the persisted state: the current button of every group.
type Selections struct {
	// Source names the preset the selections belong to.
	Source string
	// Groups maps group names to the selected button name or "OFF".
	Groups map[string]string
	// SavedAt is the time of the last save.
	SavedAt time.Time
}

// Repository defines persistence operations for group selections.
type Repository interface {
	Load(ctx context.Context) (*Selections, error)
	Save(ctx context.Context, selections *Selections) error
}

// FileRepository persists selections to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) over a
// structpb.Struct, the same encoding the gRPC status payload uses.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

const (
	// sourceKey holds the preset source.
	sourceKey = "source"
	// groupsKey holds the selection map.
	groupsKey = "groups"
	// savedAtKey holds the RFC 3339 save time.
	savedAtKey = "saved_at"
)

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("state not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the selections from disk.
func (r *FileRepository) Load(_ context.Context) (*Selections, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var message structpb.Struct
	if err = protojson.Unmarshal(contents, &message); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromProto(&message), nil
}

// Save writes the selections to disk using JSON representation.
func (r *FileRepository) Save(_ context.Context, selections *Selections) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, err := toProto(selections)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
	}

	data, err := marshalOptions.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// MemoryRepository keeps the last saved selections in memory.
type MemoryRepository struct {
	// mu protects last.
	mu sync.Mutex
	// last is a copy of the latest saved selections.
	last *Selections
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return new(MemoryRepository)
}

// Load returns a copy of the latest saved selections.
func (r *MemoryRepository) Load(_ context.Context) (*Selections, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last == nil {
		return nil, ErrNotFound
	}

	return clone(r.last), nil
}

// Save stores a copy of the selections.
func (r *MemoryRepository) Save(_ context.Context, selections *Selections) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = clone(selections)

	return nil
}

// clone deep-copies selections.
func clone(s *Selections) *Selections {
	result := *s
	result.Groups = maps.Clone(s.Groups)

	return &result
}

// fromProto converts the stored structpb.Struct into Selections.
func fromProto(message *structpb.Struct) *Selections {
	fields := message.GetFields()

	result := &Selections{
		Source: fields[sourceKey].GetStringValue(),
		Groups: make(map[string]string),
	}

	if savedAt, err := time.Parse(time.RFC3339, fields[savedAtKey].GetStringValue()); err == nil {
		result.SavedAt = savedAt
	}

	for name, value := range fields[groupsKey].GetStructValue().GetFields() {
		result.Groups[name] = value.GetStringValue()
	}

	return result
}

// toProto converts Selections into a structpb.Struct.
func toProto(selections *Selections) (*structpb.Struct, error) {
	groups := make(map[string]any, len(selections.Groups))
	for name, current := range selections.Groups {
		groups[name] = current
	}

	fields := map[string]any{
		sourceKey: selections.Source,
		groupsKey: groups,
	}

	if !selections.SavedAt.IsZero() {
		fields[savedAtKey] = selections.SavedAt.UTC().Format(time.RFC3339)
	}

	return structpb.NewStruct(fields)
}
