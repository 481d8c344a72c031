package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/pkg/apperror"
)

const (
	tutorsIndex   = "tutors"
	signerKeyName = "TutorSearchSigner"
)

// TutorSearch keeps the public tutor directory searchable from the browser.
type TutorSearch interface {
	IndexTutor(tutor *entity.TutorProfile) error
	DeleteTutor(id string) error
	GenerateSearchToken(role entity.Role) (string, error)
}

type meiliTutorSearch struct {
	client        meilisearch.ServiceManager
	signingKeyUID string
	signingKey    string
	sanitizer     *bluemonday.Policy
	log           *zap.Logger
}

func NewMeiliTutorSearch(client meilisearch.ServiceManager, log *zap.Logger) TutorSearch {
	s := &meiliTutorSearch{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
		log:       log,
	}
	s.initIndex()
	s.initSigningKey()
	return s
}

func (s *meiliTutorSearch) initSigningKey() {
	resp, err := s.client.GetKeys(&meilisearch.KeysQuery{Limit: 20})
	if err != nil {
		s.log.Warn("failed to get meilisearch keys", zap.Error(err))
		return
	}

	for _, key := range resp.Results {
		if key.Name == signerKeyName {
			s.signingKeyUID = key.UID
			s.signingKey = key.Key
			return
		}
	}

	key, err := s.client.CreateKey(&meilisearch.Key{
		Description: "Key to sign tutor search tenant tokens",
		Name:        signerKeyName,
		Actions:     []string{"search"},
		Indexes:     []string{tutorsIndex},
		ExpiresAt:   time.Now().AddDate(100, 0, 0),
	})
	if err != nil {
		s.log.Warn("failed to create meilisearch signing key", zap.Error(err))
		return
	}
	s.signingKeyUID = key.UID
	s.signingKey = key.Key
	s.log.Info("created meilisearch signing key")
}

func (s *meiliTutorSearch) initIndex() {
	filterable := []any{"subjects", "listed", "hourly_rate", "rating"}
	if _, err := s.client.Index(tutorsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		s.log.Warn("failed to update tutors filterable attributes", zap.Error(err))
	}

	sortable := []string{"rating", "hourly_rate", "completed_sessions"}
	if _, err := s.client.Index(tutorsIndex).UpdateSortableAttributes(&sortable); err != nil {
		s.log.Warn("failed to update tutors sortable attributes", zap.Error(err))
	}
}

type tutorDoc struct {
	ID                string   `json:"id"`
	FullName          string   `json:"full_name"`
	Bio               string   `json:"bio"`
	Subjects          []string `json:"subjects"`
	HourlyRate        float64  `json:"hourly_rate"`
	Rating            float64  `json:"rating"`
	CompletedSessions int      `json:"completed_sessions"`
	PhotoURL          string   `json:"photo_url"`
	Listed            bool     `json:"listed"`
}

func newTutorDoc(t *entity.TutorProfile, clean func(string) string) tutorDoc {
	return tutorDoc{
		ID:                t.ID,
		FullName:          t.FullName,
		Bio:               clean(t.Bio),
		Subjects:          t.Subjects,
		HourlyRate:        t.HourlyRate,
		Rating:            t.Rating,
		CompletedSessions: t.CompletedSessions,
		PhotoURL:          t.PhotoURL,
		Listed:            len(t.Subjects) > 0 && t.HourlyRate > 0,
	}
}

func (s *meiliTutorSearch) cleanText(content string) string {
	content = strings.ReplaceAll(content, "</p>", " ")
	content = strings.ReplaceAll(content, "<br>", " ")
	cleaned := html.UnescapeString(s.sanitizer.Sanitize(content))
	return strings.Join(strings.Fields(cleaned), " ")
}

func (s *meiliTutorSearch) IndexTutor(tutor *entity.TutorProfile) error {
	doc := newTutorDoc(tutor, s.cleanText)
	task, err := s.client.Index(tutorsIndex).AddDocuments([]tutorDoc{doc}, strPtr("id"))
	if err != nil {
		return err
	}
	s.log.Debug("indexed tutor", zap.String("id", tutor.ID), zap.Int64("task", task.TaskUID))
	return nil
}

func (s *meiliTutorSearch) DeleteTutor(id string) error {
	_, err := s.client.Index(tutorsIndex).DeleteDocument(id)
	return err
}

func (s *meiliTutorSearch) GenerateSearchToken(role entity.Role) (string, error) {
	if s.signingKeyUID == "" || s.signingKey == "" {
		return "", fmt.Errorf("%w: signing key not initialized", apperror.ErrUnavailable)
	}
	if !role.Valid() {
		return "", apperror.ErrForbidden
	}

	searchRules := map[string]any{
		tutorsIndex: map[string]any{"filter": "listed = true"},
	}

	return s.client.GenerateTenantToken(s.signingKeyUID, searchRules, &meilisearch.TenantTokenOptions{
		APIKey:    s.signingKey,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
}

type nopTutorSearch struct{}

// NewNopTutorSearch is used when no search host is configured.
func NewNopTutorSearch() TutorSearch {
	return nopTutorSearch{}
}

func (nopTutorSearch) IndexTutor(*entity.TutorProfile) error { return nil }
func (nopTutorSearch) DeleteTutor(string) error              { return nil }
func (nopTutorSearch) GenerateSearchToken(entity.Role) (string, error) {
	return "", fmt.Errorf("%w: search is not configured", apperror.ErrUnavailable)
}

func strPtr(s string) *string {
	return &s
}
