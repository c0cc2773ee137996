package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const workerPopulation = `{
	"0": {"name": "Agent1", "age": 20, "gender": "Male", "occupation": "Engineer", "activities": [
		{"activityType": "work", "locationType": "Office", "startTime": "09:00", "endTime": "17:00", "lat": 31.23, "lng": 121.47},
		{"activityType": "sleep", "locationType": "Home", "startTime": "22:00", "endTime": "08:00", "lat": 31.21, "lng": 121.45}
	]}
}`

func TestNewClient_Disabled(t *testing.T) {
	c := NewClient("", time.Second)
	if c != nil || c.Enabled() {
		t.Fatal("empty base URL should disable the client")
	}
	if _, err := c.StartDay(context.Background(), StartRequest{}); err == nil {
		t.Error("disabled client should refuse requests")
	}
}

func TestStartDay_PassesThrough(t *testing.T) {
	var gotReq StartRequest
	var gotPath, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, `{"error":"brewing"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	resp, err := c.StartDay(context.Background(), StartRequest{StartTime: "08:00", AgentCount: 3})
	if err != nil {
		t.Fatalf("StartDay error: %v", err)
	}

	if gotPath != "/start_day" || gotType != "application/json" {
		t.Errorf("request path/type = %s %s", gotPath, gotType)
	}
	if gotReq.StartTime != "08:00" || gotReq.AgentCount != 3 {
		t.Errorf("forwarded payload = %+v", gotReq)
	}
	if resp.StatusCode != http.StatusTeapot || string(resp.Body) != `{"error":"brewing"}` {
		t.Errorf("response = %d %s, want verbatim passthrough", resp.StatusCode, resp.Body)
	}
	if resp.OK() {
		t.Error("418 should not be OK")
	}
}

func TestForward_RawBody(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		io.WriteString(w, "{}")
	}))
	defer srv.Close()

	raw := `{"startTime":"07:15","agentCount":2,"extra":true}`
	if _, err := NewClient(srv.URL, time.Second).Forward(context.Background(), []byte(raw)); err != nil {
		t.Fatal(err)
	}
	if got != raw {
		t.Errorf("forwarded body = %s, want %s", got, raw)
	}
}

func TestFetchPopulation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, workerPopulation)
	}))
	defer srv.Close()

	list, err := NewClient(srv.URL, time.Second).FetchPopulation(context.Background(), StartRequest{StartTime: "08:00", AgentCount: 1})
	if err != nil {
		t.Fatalf("FetchPopulation error: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Agent1" || len(list[0].Activities) != 2 {
		t.Fatalf("population = %+v", list)
	}
	if !list[0].Activities[1].Wraps() {
		t.Error("sleep window should wrap")
	}
}

func TestFetchPopulation_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 500), http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).FetchPopulation(context.Background(), StartRequest{})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %v, want remote 500", err)
	}
}

func TestStartDay_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := NewClient(url, time.Second).StartDay(context.Background(), StartRequest{}); err == nil {
		t.Error("closed server should give a transport error")
	}
}

func TestForward_BodyLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"at limit", maxBody, false},
		{"over limit", maxBody + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, strings.Repeat("x", tt.size))
			}))
			defer srv.Close()

			resp, err := NewClient(srv.URL, 5*time.Second).Forward(context.Background(), []byte("{}"))
			if tt.wantErr {
				if !errors.Is(err, ErrBodyTooLarge) {
					t.Errorf("error = %v, want ErrBodyTooLarge", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Forward error: %v", err)
			}
			if len(resp.Body) != tt.size {
				t.Errorf("body = %d bytes, want %d", len(resp.Body), tt.size)
			}
		})
	}
}
