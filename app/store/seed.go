package store

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	log "github.com/go-pkgz/lgr"

	"github.com/postbureau/dispatch/app/store/enums"
)

//go:embed seed.yml
var embeddedSeed []byte

// SeedData is the demo dataset loaded into an empty database on first start.
// The YAML shape is validated before apply, see Verify.
type SeedData struct {
	Clients   []SeedClient   `yaml:"clients" json:"clients"`
	Users     []SeedUser     `yaml:"users" json:"users"`
	Jobs      []SeedJob      `yaml:"jobs" json:"jobs"`
	Documents []SeedDocument `yaml:"documents" json:"documents"`
}

// SeedClient is a client with its sub-client names
type SeedClient struct {
	Name       string   `yaml:"name" json:"name" jsonschema:"required"`
	SubClients []string `yaml:"sub_clients" json:"sub_clients,omitempty"`
}

// SeedUser is an account; the plaintext demo password is hashed on apply
type SeedUser struct {
	Email             string   `yaml:"email" json:"email" jsonschema:"required"`
	Name              string   `yaml:"name" json:"name,omitempty"`
	Role              string   `yaml:"role" json:"role" jsonschema:"required,enum=user,enum=manager,enum=admin"`
	Status            string   `yaml:"status" json:"status,omitempty" jsonschema:"enum=active,enum=suspended"`
	Password          string   `yaml:"password" json:"password" jsonschema:"required"`
	AllowedSubClients []string `yaml:"allowed_sub_clients" json:"allowed_sub_clients,omitempty"` // "Client/SubClient" pairs
}

// SeedJob is a booking; client and sub-client are referenced by name
type SeedJob struct {
	Title          string            `yaml:"title" json:"title" jsonschema:"required"`
	Description    string            `yaml:"description" json:"description,omitempty"`
	CustomFields   map[string]string `yaml:"custom_fields" json:"custom_fields,omitempty"`
	Status         string            `yaml:"status" json:"status,omitempty"`
	CollectionDate time.Time         `yaml:"collection_date" json:"collection_date,omitempty"`
	HandoverDate   time.Time         `yaml:"handover_date" json:"handover_date,omitempty"`
	ItemCount      int               `yaml:"item_count" json:"item_count,omitempty"`
	BagCount       int               `yaml:"bag_count" json:"bag_count,omitempty"`
	AssignedTo     string            `yaml:"assigned_to" json:"assigned_to,omitempty"`
	Client         string            `yaml:"client" json:"client,omitempty"`
	SubClient      string            `yaml:"sub_client" json:"sub_client,omitempty"`
	EManifestID    string            `yaml:"emanifest_id" json:"emanifest_id,omitempty"`
	CreatedBy      string            `yaml:"created_by" json:"created_by,omitempty"`
}

// SeedDocument is a shared document with role-restricted visibility
type SeedDocument struct {
	Name        string   `yaml:"name" json:"name" jsonschema:"required"`
	URL         string   `yaml:"url" json:"url,omitempty"`
	MimeType    string   `yaml:"mime_type" json:"mime_type,omitempty"`
	Description string   `yaml:"description" json:"description,omitempty"`
	AccessRoles []string `yaml:"access_roles" json:"access_roles,omitempty"`
	UploadedBy  string   `yaml:"uploaded_by" json:"uploaded_by,omitempty"`
}

// LoadSeed parses seed YAML
func LoadSeed(data []byte) (SeedData, error) {
	var seed SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return SeedData{}, fmt.Errorf("%w: failed to parse seed yaml: %v", ErrCorruptState, err)
	}
	return seed, nil
}

// DefaultSeed returns the embedded demo dataset
func DefaultSeed() (SeedData, error) {
	return LoadSeed(embeddedSeed)
}

// Verify checks required fields and references of the seed dataset
func (sd SeedData) Verify() error {
	clientSubs := make(map[string]map[string]bool, len(sd.Clients))
	for i, c := range sd.Clients {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("client %d: name is required", i+1)
		}
		if _, exists := clientSubs[c.Name]; exists {
			return fmt.Errorf("client %d: duplicate client name %q", i+1, c.Name)
		}
		subs := make(map[string]bool, len(c.SubClients))
		for _, sub := range c.SubClients {
			if strings.TrimSpace(sub) == "" {
				return fmt.Errorf("client %q: empty sub-client name", c.Name)
			}
			if subs[sub] {
				return fmt.Errorf("client %q: duplicate sub-client %q", c.Name, sub)
			}
			subs[sub] = true
		}
		clientSubs[c.Name] = subs
	}

	seenEmails := make(map[string]bool, len(sd.Users))
	for i, u := range sd.Users {
		if strings.TrimSpace(u.Email) == "" {
			return fmt.Errorf("user %d: email is required", i+1)
		}
		if seenEmails[strings.ToLower(u.Email)] {
			return fmt.Errorf("user %d: duplicate email %q", i+1, u.Email)
		}
		seenEmails[strings.ToLower(u.Email)] = true
		if u.Password == "" {
			return fmt.Errorf("user %q: password is required", u.Email)
		}
		if _, err := enums.ParseRole(u.Role); err != nil {
			return fmt.Errorf("user %q: %w", u.Email, err)
		}
		if u.Status != "" {
			if _, err := enums.ParseUserStatus(u.Status); err != nil {
				return fmt.Errorf("user %q: %w", u.Email, err)
			}
		}
		for _, ref := range u.AllowedSubClients {
			clientName, subName, ok := strings.Cut(ref, "/")
			if !ok {
				return fmt.Errorf("user %q: sub-client reference %q must be client/sub-client", u.Email, ref)
			}
			if !clientSubs[clientName][subName] {
				return fmt.Errorf("user %q: unknown sub-client reference %q", u.Email, ref)
			}
		}
	}

	for i, j := range sd.Jobs {
		if strings.TrimSpace(j.Title) == "" {
			return fmt.Errorf("job %d: title is required", i+1)
		}
		if j.Status != "" {
			if _, err := enums.ParseJobStatus(j.Status); err != nil {
				return fmt.Errorf("job %q: %w", j.Title, err)
			}
		}
		if j.SubClient != "" {
			if j.Client == "" {
				return fmt.Errorf("job %q: sub_client requires client", j.Title)
			}
			if !clientSubs[j.Client][j.SubClient] {
				return fmt.Errorf("job %q: unknown sub-client %q of client %q", j.Title, j.SubClient, j.Client)
			}
		}
	}

	for i, d := range sd.Documents {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("document %d: name is required", i+1)
		}
		for _, role := range d.AccessRoles {
			if _, err := enums.ParseRole(role); err != nil {
				return fmt.Errorf("document %q: %w", d.Name, err)
			}
		}
	}
	return nil
}

// GenerateSchema generates a JSON schema for the seed file format
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&SeedData{}), nil
}

// SeedIfEmpty applies the seed dataset when the database has no users yet.
// Returns true when seeding happened.
func (s *Store) SeedIfEmpty(seed SeedData) (bool, error) {
	counts, err := s.Counts()
	if err != nil {
		return false, err
	}
	if counts["users"] > 0 || counts["jobs"] > 0 {
		return false, nil
	}

	if err := seed.Verify(); err != nil {
		return false, fmt.Errorf("seed validation failed: %w", err)
	}

	// clients first, jobs and users reference sub-clients by name
	subIDs := make(map[string]string) // "client/sub" -> id
	for _, sc := range seed.Clients {
		client := Client{Name: sc.Name}
		for _, sub := range sc.SubClients {
			client.SubClients = append(client.SubClients, SubClient{Name: sub})
		}
		added, err := s.AddClient(client)
		if err != nil {
			return false, fmt.Errorf("failed to seed client %q: %w", sc.Name, err)
		}
		for _, sub := range added.SubClients {
			subIDs[added.Name+"/"+sub.Name] = sub.ID
		}
	}

	for _, su := range seed.Users {
		status := enums.UserStatusActive
		if su.Status != "" {
			status = enums.UserStatus(su.Status)
		}
		var allowed StringList
		for _, ref := range su.AllowedSubClients {
			allowed = append(allowed, subIDs[ref])
		}
		user := User{
			Email:             su.Email,
			Name:              su.Name,
			Role:              enums.Role(su.Role),
			Status:            status,
			AllowedSubClients: allowed,
		}
		if _, err := s.AddUser(user, su.Password); err != nil {
			return false, fmt.Errorf("failed to seed user %q: %w", su.Email, err)
		}
	}

	for _, sj := range seed.Jobs {
		status := enums.JobStatusPending
		if sj.Status != "" {
			status = enums.JobStatus(sj.Status)
		}
		job := Job{
			Title:          sj.Title,
			Description:    sj.Description,
			CustomFields:   StringMap(sj.CustomFields),
			Status:         status,
			CollectionDate: sj.CollectionDate,
			HandoverDate:   sj.HandoverDate,
			ItemCount:      sj.ItemCount,
			BagCount:       sj.BagCount,
			AssignedTo:     sj.AssignedTo,
			ClientName:     sj.Client,
			SubClientID:    subIDs[sj.Client+"/"+sj.SubClient],
			EManifestID:    sj.EManifestID,
			CreatedBy:      sj.CreatedBy,
		}
		if _, err := s.AddJob(job); err != nil {
			return false, fmt.Errorf("failed to seed job %q: %w", sj.Title, err)
		}
	}

	for _, sdoc := range seed.Documents {
		var roles RoleList
		for _, role := range sdoc.AccessRoles {
			roles = append(roles, enums.Role(role))
		}
		doc := Document{
			Name:        sdoc.Name,
			URL:         sdoc.URL,
			MimeType:    sdoc.MimeType,
			Description: sdoc.Description,
			AccessRoles: roles,
			UploadedBy:  sdoc.UploadedBy,
		}
		if _, err := s.AddDocument(doc); err != nil {
			return false, fmt.Errorf("failed to seed document %q: %w", sdoc.Name, err)
		}
	}

	log.Printf("[INFO] seeded database: %d clients, %d users, %d jobs, %d documents",
		len(seed.Clients), len(seed.Users), len(seed.Jobs), len(seed.Documents))
	return true, nil
}
