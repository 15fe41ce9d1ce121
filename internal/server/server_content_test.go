package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"

	"ecojourney/pkg/domain"
)

func uploadContent(t *testing.T, baseURL, token, title string) domain.Content {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("title", title); err != nil {
		t.Fatalf("write title: %v", err)
	}
	if err := form.WriteField("type", "image"); err != nil {
		t.Fatalf("write type: %v", err)
	}
	part, err := form.CreateFormFile("file", "photo.jpg")
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := part.Write([]byte("jpegbytes")); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/content", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload expected 201, got %d", resp.StatusCode)
	}
	var content domain.Content
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	return content
}

func decodeContent(t *testing.T, resp *http.Response) domain.Content {
	t.Helper()
	defer resp.Body.Close()
	var content domain.Content
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	return content
}

func TestContentUploadRequiresFile(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := register(t, ts.URL, "root")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("title", "no file")
	_ = form.WriteField("type", "image")
	_ = form.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/content", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without file part, got %d", resp.StatusCode)
	}
}

func TestWorkflowOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := register(t, ts.URL, "root")
	alice := register(t, ts.URL, "alice")

	content := uploadContent(t, ts.URL, alice.Token, "Recycling 101")
	if content.Status != domain.StatusDraft {
		t.Fatalf("expected draft, got %s", content.Status)
	}

	// submit for review
	resp := postJSON(t, ts.URL+"/api/content/"+content.ID+"/submit", alice.Token, submitRequest{Notes: "ready"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit expected 200, got %d", resp.StatusCode)
	}
	if got := decodeContent(t, resp); got.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}

	// creator cannot review own submission
	resp = postJSON(t, ts.URL+"/api/content/"+content.ID+"/review", alice.Token, reviewRequest{Decision: "approved"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self review expected 403, got %d", resp.StatusCode)
	}

	// rejection without feedback is a validation error
	resp = postJSON(t, ts.URL+"/api/content/"+content.ID+"/review", admin.Token, reviewRequest{Decision: "rejected"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reject without feedback expected 400, got %d", resp.StatusCode)
	}

	// approve, then publish
	resp = postJSON(t, ts.URL+"/api/content/"+content.ID+"/review", admin.Token, reviewRequest{Decision: "approved"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = postJSON(t, ts.URL+"/api/content/"+content.ID+"/publish", admin.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("publish expected 200, got %d", resp.StatusCode)
	}
	if got := decodeContent(t, resp); got.Status != domain.StatusPublished {
		t.Fatalf("expected published, got %s", got.Status)
	}

	// double publish is a conflict
	resp = postJSON(t, ts.URL+"/api/content/"+content.ID+"/publish", admin.Token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double publish expected 409, got %d", resp.StatusCode)
	}

	// workflow record is visible to the creator
	resp = getJSON(t, ts.URL+"/api/content/"+content.ID+"/workflow", alice.Token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("workflow expected 200, got %d", resp.StatusCode)
	}
	var workflow domain.Workflow
	if err := json.NewDecoder(resp.Body).Decode(&workflow); err != nil {
		t.Fatalf("decode workflow: %v", err)
	}
	if workflow.Status != domain.WorkflowApproved {
		t.Fatalf("expected approved workflow, got %s", workflow.Status)
	}
}

func TestContentListScopedOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := register(t, ts.URL, "root")
	alice := register(t, ts.URL, "alice")
	bob := register(t, ts.URL, "bob")

	uploadContent(t, ts.URL, alice.Token, "Alice's draft")
	uploadContent(t, ts.URL, bob.Token, "Bob's draft")

	count := func(token string) int {
		resp := getJSON(t, ts.URL+"/api/content", token)
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list expected 200, got %d", resp.StatusCode)
		}
		var out struct {
			Count int `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		return out.Count
	}
	if got := count(alice.Token); got != 1 {
		t.Fatalf("producer expected 1 item, got %d", got)
	}
	if got := count(admin.Token); got != 2 {
		t.Fatalf("admin expected 2 items, got %d", got)
	}
}

func TestContentNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := register(t, ts.URL, "root")

	resp := getJSON(t, ts.URL+"/api/content/does-not-exist", admin.Token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
