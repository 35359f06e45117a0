package services

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

const DefaultPublicHost = "surveyapp.com"

// Deployment is the shareable link produced for a survey. Nothing is published.
type Deployment struct {
	SurveyID   string    `json:"survey_id"`
	Link       string    `json:"link"`
	DeployedAt time.Time `json:"deployed_at"`
}

type DeployService struct {
	reader SurveyReader
	host   string
	now    func() time.Time

	mu       sync.RWMutex
	deployed map[string]Deployment
}

func NewDeployService(reader SurveyReader, host string) *DeployService {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultPublicHost
	}
	return &DeployService{
		reader:   reader,
		host:     host,
		now:      func() time.Time { return time.Now().UTC() },
		deployed: map[string]Deployment{},
	}
}

// Link builds https://<host>/s/<surveyID>.
func (s *DeployService) Link(surveyID string) string {
	u := url.URL{Scheme: "https", Host: s.host, Path: "/s/" + surveyID}
	return u.String()
}

// Deploy produces the link for an existing survey. Deploying twice returns the first deployment.
func (s *DeployService) Deploy(surveyID string) (*Deployment, error) {
	if _, err := mustGetSurvey(s.reader, surveyID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.deployed[surveyID]; ok {
		return &d, nil
	}
	d := Deployment{SurveyID: surveyID, Link: s.Link(surveyID), DeployedAt: s.now()}
	s.deployed[surveyID] = d
	return &d, nil
}

func (s *DeployService) IsDeployed(surveyID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.deployed[surveyID]
	return ok
}

// Forget drops the deployment record, e.g. after the survey was deleted.
func (s *DeployService) Forget(surveyID string) {
	s.mu.Lock()
	delete(s.deployed, surveyID)
	s.mu.Unlock()
}
