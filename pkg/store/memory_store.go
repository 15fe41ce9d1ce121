package store

import (
	"sort"
	"sync"
	"time"

	"ecojourney/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs unit tests and local
// development; the mutex serializes transitions the way the row lock does
// in Postgres.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	usersByMail map[string]string
	usersByName map[string]string
	categories  map[string]domain.Category
	content     map[string]domain.Content
	contentIDs  []string
	workflows   map[string]domain.Workflow // key: content ID
	versions    map[string][]domain.ContentVersion
	resetTokens map[string]domain.PasswordResetToken // key: token value
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		usersByMail: make(map[string]string),
		usersByName: make(map[string]string),
		categories:  make(map[string]domain.Category),
		content:     make(map[string]domain.Content),
		workflows:   make(map[string]domain.Workflow),
		versions:    make(map[string][]domain.ContentVersion),
		resetTokens: make(map[string]domain.PasswordResetToken),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok {
		delete(m.usersByMail, prev.Email)
		delete(m.usersByName, prev.Username)
	}
	m.users[u.ID] = u
	m.usersByMail[u.Email] = u.ID
	m.usersByName[u.Username] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.usersByMail[email]
	return ok, nil
}

func (m *MemoryStore) HasUsername(username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.usersByName[username]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByMail[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByName[username]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) ListUsersByRole(role domain.RoleName) ([]domain.User, error) {
	users, _ := m.ListUsers()
	res := users[:0]
	for _, u := range users {
		if u.Role == role {
			res = append(res, u)
		}
	}
	return res, nil
}

func (m *MemoryStore) ListRoles() ([]domain.Role, error) {
	return []domain.Role{
		{Name: domain.RoleAdmin, Description: "Administrator"},
		{Name: domain.RoleContentManager, Description: "Content Manager"},
		{Name: domain.RoleContentProducer, Description: "Content Producer"},
	}, nil
}

func (m *MemoryStore) SaveCategory(c domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
	return nil
}

func (m *MemoryStore) GetCategory(id string) (domain.Category, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.categories[id]
	return c, ok, nil
}

func (m *MemoryStore) ListCategories() ([]domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (m *MemoryStore) DeleteCategory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.categories, id)
	for cid, c := range m.content {
		if c.CategoryID == id {
			c.CategoryID = ""
			m.content[cid] = c
		}
	}
	return nil
}

func (m *MemoryStore) CreateContent(c domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.content[c.ID]; !exists {
		m.contentIDs = append(m.contentIDs, c.ID)
	}
	m.content[c.ID] = c
	return nil
}

func (m *MemoryStore) GetContent(id string) (domain.Content, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.content[id]
	return c, ok, nil
}

func (m *MemoryStore) ListContent(filter ContentFilter) ([]domain.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Content, 0, len(m.contentIDs))
	for i := len(m.contentIDs) - 1; i >= 0; i-- {
		c, ok := m.content[m.contentIDs[i]]
		if !ok {
			continue
		}
		if filter.CreatorID != "" && c.CreatorID != filter.CreatorID {
			continue
		}
		if filter.Status != "" {
			if c.Status != filter.Status {
				continue
			}
		} else if !filter.IncludeArchived && c.Status == domain.StatusArchived {
			continue
		}
		if filter.CategoryID != "" && c.CategoryID != filter.CategoryID {
			continue
		}
		res = append(res, c)
	}
	return res, nil
}

func (m *MemoryStore) DeleteContent(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.content, id)
	delete(m.workflows, id)
	delete(m.versions, id)
	filtered := m.contentIDs[:0]
	for _, item := range m.contentIDs {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.contentIDs = filtered
	return nil
}

func (m *MemoryStore) IncrementViewCount(id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.content[id]
	if !ok {
		return 0, ErrNotFound
	}
	c.ViewCount++
	m.content[id] = c
	return c.ViewCount, nil
}

func (m *MemoryStore) UpdateContent(content domain.Content, version domain.ContentVersion) (domain.ContentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.content[content.ID]
	if !ok {
		return domain.ContentVersion{}, ErrNotFound
	}
	version.VersionNumber = len(m.versions[content.ID]) + 1
	current.Title = content.Title
	current.Description = content.Description
	current.CategoryID = content.CategoryID
	current.FileKey = content.FileKey
	current.OriginalFilename = content.OriginalFilename
	current.SizeBytes = content.SizeBytes
	current.ThumbnailKey = content.ThumbnailKey
	current.Tags = content.Tags
	current.UpdatedAt = time.Now().UTC()
	m.content[content.ID] = current
	m.versions[content.ID] = append(m.versions[content.ID], version)
	return version, nil
}

func (m *MemoryStore) ListVersions(contentID string) ([]domain.ContentVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.versions[contentID]
	res := make([]domain.ContentVersion, len(versions))
	copy(res, versions)
	sort.Slice(res, func(i, j int) bool { return res[i].VersionNumber > res[j].VersionNumber })
	return res, nil
}

func (m *MemoryStore) GetWorkflow(contentID string) (domain.Workflow, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workflows[contentID]
	return w, ok, nil
}

func (m *MemoryStore) ListPendingWorkflows() ([]domain.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Workflow, 0)
	for _, w := range m.workflows {
		if w.Status == domain.WorkflowPending {
			res = append(res, w)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SubmittedAt.Before(res[j].SubmittedAt) })
	return res, nil
}

func (m *MemoryStore) Transition(contentID string, apply func(*domain.Content, *domain.Workflow) error) (domain.Content, domain.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.content[contentID]
	if !ok {
		return domain.Content{}, domain.Workflow{}, ErrNotFound
	}
	workflow := m.workflows[contentID]
	if err := apply(&content, &workflow); err != nil {
		return domain.Content{}, domain.Workflow{}, err
	}
	m.content[contentID] = content
	if workflow.ID != "" {
		m.workflows[contentID] = workflow
	}
	return content, workflow, nil
}

func (m *MemoryStore) SavePasswordResetToken(t domain.PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for value, existing := range m.resetTokens {
		if existing.UserID == t.UserID {
			delete(m.resetTokens, value)
		}
	}
	m.resetTokens[t.Token] = t
	return nil
}

func (m *MemoryStore) GetPasswordResetToken(token string) (domain.PasswordResetToken, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.resetTokens[token]
	return t, ok, nil
}

func (m *MemoryStore) MarkResetTokenUsed(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for value, t := range m.resetTokens {
		if t.ID == id {
			if t.Used {
				return false, nil
			}
			t.Used = true
			m.resetTokens[value] = t
			return true, nil
		}
	}
	return false, ErrNotFound
}
