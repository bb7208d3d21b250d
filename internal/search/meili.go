package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	idxUsers    = "taskboard_users"
	idxProjects = "taskboard_projects"
)

type userRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type projectRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Meili implements Backend via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	log     *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the indexes. A failed
// initial connection is not fatal; the health loop keeps retrying.
func NewMeili(url, apiKey string, log *zap.Logger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		log:    log,
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		log.Warn("meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		searchable []string
	}{
		{uid: idxUsers, searchable: []string{"username", "name"}},
		{uid: idxProjects, searchable: []string{"name"}},
	}
	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idx.uid, PrimaryKey: "id"}); err != nil {
			m.log.Debug("create index", zap.String("index", idx.uid), zap.Error(err))
		}
		if _, err := m.client.Index(idx.uid).UpdateSearchableAttributes(&idx.searchable); err != nil {
			m.log.Warn("update searchable attributes", zap.String("index", idx.uid), zap.Error(err))
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) SearchUsers(ctx context.Context, query string, limit int) ([]Result, error) {
	return m.search(idxUsers, KindUser, query, limit)
}

func (m *Meili) SearchProjects(ctx context.Context, query string, limit int) ([]Result, error) {
	return m.search(idxProjects, KindProject, query, limit)
}

func (m *Meili) search(index, kind, query string, limit int) ([]Result, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	resp, err := m.client.Index(index).Search(query, &meili.SearchRequest{Limit: int64(limit)})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search %s: %w", index, err)
	}
	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, Result{
			Kind:     kind,
			ID:       decodeString(hit, "id"),
			Name:     decodeString(hit, "name"),
			Username: decodeString(hit, "username"),
		})
	}
	return results, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func (m *Meili) IndexUser(ctx context.Context, id, name, username string) error {
	_, err := m.client.Index(idxUsers).AddDocuments([]userRecord{{ID: id, Name: name, Username: username}}, nil)
	return err
}

func (m *Meili) IndexProject(ctx context.Context, id, name string) error {
	_, err := m.client.Index(idxProjects).AddDocuments([]projectRecord{{ID: id, Name: name}}, nil)
	return err
}
