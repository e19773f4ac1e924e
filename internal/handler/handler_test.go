package handler

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/abenov/zanexam/internal/i18n"
	"github.com/abenov/zanexam/internal/judge"
	"github.com/abenov/zanexam/internal/model"
	"github.com/abenov/zanexam/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fb := judge.NewFallback(rand.New(rand.NewPCG(1, 2)))
	orch := judge.NewOrchestrator(nil, judge.NewController(6, 2), fb)
	h := New(st, orch)

	r := chi.NewRouter()
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, st
}

func postSubmission(t *testing.T, srv *httptest.Server, body string) (*http.Response, submissionResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/submissions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/submissions: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var sub submissionResponse
	if resp.StatusCode == http.StatusCreated {
		if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, sub
}

const submissionBody = `{
	"student": {"name": "Айгерим", "external_id": "st-1"},
	"items": [
		{
			"question": "Какая статья УК предусматривает ответственность за кражу?",
			"correct_answer": "Статья 345 УК",
			"user_answer": "345 статья"
		},
		{
			"question": "Что такое наказание?",
			"correct_answer": "Мера государственного принуждения",
			"user_answer": ""
		}
	]
}`

func TestCreateSubmission(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, sub := postSubmission(t, srv, submissionBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	if sub.ID == "" {
		t.Error("submission id is empty")
	}
	if sub.Authoritative.Correct != 1 || sub.Authoritative.Total != 2 {
		t.Errorf("authoritative = %+v, want 1/2", sub.Authoritative)
	}
	if sub.Authoritative.Percentage != 50 || sub.Authoritative.IsPassing {
		t.Errorf("authoritative = %+v, want 50%% failing", sub.Authoritative)
	}
	if sub.Verdict != "Failed" {
		t.Errorf("verdict = %q, want Failed", sub.Verdict)
	}
	if sub.ScoreLine != "Score: 1 of 2 (50%)" {
		t.Errorf("score line = %q, want 'Score: 1 of 2 (50%%)'", sub.ScoreLine)
	}
	if sub.AdvisoryStatus != model.AdvisoryPending {
		t.Errorf("advisory status = %s, want %s", sub.AdvisoryStatus, model.AdvisoryPending)
	}
	if sub.StatusLabel != "Detailed review in progress" {
		t.Errorf("status label = %q, want 'Detailed review in progress'", sub.StatusLabel)
	}
}

func TestGetSubmissionWithAdvisory(t *testing.T) {
	srv, st := newTestServer(t)

	resp, created := postSubmission(t, srv, submissionBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	// The advisory track runs in the background; wait for it to land.
	deadline := time.Now().Add(5 * time.Second)
	for {
		sub, err := st.GetSubmission(created.ID)
		if err != nil {
			t.Fatalf("GetSubmission: %v", err)
		}
		if sub.AdvisoryStatus == model.AdvisoryComplete {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("advisory grading did not complete in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	getResp, err := http.Get(srv.URL + "/api/submissions/" + created.ID)
	if err != nil {
		t.Fatalf("GET submission: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", getResp.StatusCode, http.StatusOK)
	}

	var got submissionResponse
	if err := json.NewDecoder(getResp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.StatusLabel != "Detailed review complete" {
		t.Errorf("status label = %q, want 'Detailed review complete'", got.StatusLabel)
	}
	if got.Advisory == nil {
		t.Fatal("advisory block missing after completion")
	}
	if got.Advisory.GradedLine != "2 questions graded." {
		t.Errorf("graded line = %q, want '2 questions graded.'", got.Advisory.GradedLine)
	}
	if len(got.Advisory.Judgments) != 2 {
		t.Fatalf("advisory judgments = %d, want 2", len(got.Advisory.Judgments))
	}

	// Item 1 names the right article: the advisory verdict must be Correct
	// even on the rule-based path. Item 2 was left unanswered.
	j1 := got.Advisory.Judgments[0]
	if j1.Category != model.CategoryCorrect || !j1.IsCorrect {
		t.Errorf("judgment 1 = %+v, want correct citation verdict", j1)
	}
	j2 := got.Advisory.Judgments[1]
	if j2.Category != model.CategoryIncorrect || j2.Score != 0 {
		t.Errorf("judgment 2 = %+v, want incorrect with zero score", j2)
	}
	for _, j := range got.Advisory.Judgments {
		if j.Source != model.SourceFallback {
			t.Errorf("judgment source = %s, want %s with no remote judge", j.Source, model.SourceFallback)
		}
	}
}

func TestCreateSubmissionRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", "{"},
		{"no items", `{"student": {"name": "x"}, "items": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postSubmission(t, srv, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestGetSubmissionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/submissions/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestAdminAuth(t *testing.T) {
	srv, st := newTestServer(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	if err := st.SetMetadata(store.AdminPasswordKey, string(hash)); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}

	get := func(token string) int {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/admin/submissions", nil)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET admin: %v", err)
		}
		defer resp.Body.Close()
		return resp.StatusCode
	}

	if code := get(""); code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want %d", code, http.StatusUnauthorized)
	}
	if code := get("wrong"); code != http.StatusForbidden {
		t.Errorf("wrong token: status = %d, want %d", code, http.StatusForbidden)
	}
	if code := get("secret"); code != http.StatusOK {
		t.Errorf("valid token: status = %d, want %d", code, http.StatusOK)
	}
}
