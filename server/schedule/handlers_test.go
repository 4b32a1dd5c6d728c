package serverschedule_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/s4sahiko/Timetable-Sync-Pro/extraction"
	"github.com/s4sahiko/Timetable-Sync-Pro/extraction/services/gemini/testgemini"
	"github.com/s4sahiko/Timetable-Sync-Pro/internal/config"
	serverschedule "github.com/s4sahiko/Timetable-Sync-Pro/server/schedule"
	"github.com/s4sahiko/Timetable-Sync-Pro/server/session"
	"github.com/s4sahiko/Timetable-Sync-Pro/timetable"
)

type entryBody struct {
	Day      string `json:"day"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Subject  string `json:"subject"`
	Location string `json:"location,omitempty"`
}

type scheduleBody struct {
	Entries  []entryBody              `json:"entries"`
	Warnings []timetable.ParseWarning `json:"warnings"`
}

// newTestApp stands up the schedule routes against a mock extraction
// engine and returns a client that keeps the session cookie
func newTestApp(t *testing.T, tokens []timetable.Token) (*httptest.Server, *http.Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	service, err := testgemini.GetMockTestingService(ctx, tokens)
	if err != nil {
		t.Fatalf("Could not set up the mock service: %v", err)
	}
	orch, err := extraction.CreateOrchestrator([]extraction.Service{service})
	if err != nil {
		t.Fatalf("Could not create the orchestrator: %v", err)
	}

	cfg := config.DefaultConfig()
	sessions := session.NewStore(session.DefaultTokenDuration)

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		serverschedule.PopulateScheduleRoutes(&r, orch, sessions, cfg, *slog.Default())
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("Could not create a cookie jar: %v", err)
	}
	return server, &http.Client{Jar: jar}
}

func uploadImage(t *testing.T, server *httptest.Server, client *http.Client) scheduleBody {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "timetable.png")
	if err != nil {
		t.Fatalf("Could not build the upload: %v", err)
	}
	part.Write([]byte("\x89PNG\r\n\x1a\nnot really pixels"))
	writer.Close()

	resp, err := client.Post(server.URL+"/api/analyze", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("Upload request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Upload answered %d: %s", resp.StatusCode, body)
	}

	var schedule scheduleBody
	if err := json.NewDecoder(resp.Body).Decode(&schedule); err != nil {
		t.Fatalf("Could not decode the upload response: %v", err)
	}
	return schedule
}

func doJSON(
	t *testing.T,
	client *http.Client,
	method string,
	url string,
	body any,
) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Could not marshal the request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Could not build the request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func TestUploadAndReviewFlow(t *testing.T) {
	server, client := newTestApp(t, []timetable.Token{
		{Text: "Mon 9-10 Math", Row: 0, Col: 0},
		{Text: "Tue 10-11 Physics @ Lab 2", Row: 0, Col: 1},
		{Text: "???", Row: 1, Col: 0},
	})

	schedule := uploadImage(t, server, client)
	if len(schedule.Entries) != 2 {
		t.Fatalf("Expected 2 entries got %v", schedule.Entries)
	}
	if len(schedule.Warnings) != 1 {
		t.Errorf("Expected 1 warning got %v", schedule.Warnings)
	}

	// the cookie from the upload authorizes the review endpoints
	resp, err := client.Get(server.URL + "/api/schedule")
	if err != nil {
		t.Fatalf("List request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("List answered %d", resp.StatusCode)
	}
	var listed scheduleBody
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("Could not decode the list response: %v", err)
	}
	if len(listed.Entries) != 2 {
		t.Errorf("Expected the listed schedule to match the upload, got %v", listed.Entries)
	}
	if listed.Entries[0].Day != "Monday" || listed.Entries[0].Start != "09:00" {
		t.Errorf("Expected Monday 09:00 first got %+v", listed.Entries[0])
	}
}

func TestReviewEndpointsNeedASession(t *testing.T) {
	server, client := newTestApp(t, nil)

	for _, path := range []string{"/api/schedule", "/download/timetable.ics"} {
		resp, err := client.Get(server.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without a session answered %d want 401", path, resp.StatusCode)
		}
	}
}

func TestEntryMutations(t *testing.T) {
	server, client := newTestApp(t, []timetable.Token{
		{Text: "Mon 9-10 Math", Row: 0, Col: 0},
	})
	uploadImage(t, server, client)
	base := server.URL + "/api/schedule"

	// adding an overlapping entry is a conflict
	resp := doJSON(t, client, http.MethodPost, base, entryBody{
		Day: "Monday", Start: "09:30", End: "10:30", Subject: "Physics",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Overlapping add answered %d want 409", resp.StatusCode)
	}

	// a free slot works
	resp = doJSON(t, client, http.MethodPost, base, entryBody{
		Day: "Tue", Start: "10:00", End: "11:00", Subject: "Physics", Location: "Lab 2",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Add answered %d want 200", resp.StatusCode)
	}
	var schedule scheduleBody
	if err := json.NewDecoder(resp.Body).Decode(&schedule); err != nil {
		t.Fatalf("Could not decode the add response: %v", err)
	}
	if len(schedule.Entries) != 2 {
		t.Fatalf("Expected 2 entries after the add got %v", schedule.Entries)
	}

	// fixing up an entry in place
	resp = doJSON(t, client, http.MethodPut, base+"/0", entryBody{
		Day: "Monday", Start: "9:00 AM", End: "10:30 AM", Subject: "Advanced Math",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Update answered %d want 200", resp.StatusCode)
	}

	// indexes outside the schedule are not found
	resp = doJSON(t, client, http.MethodDelete, base+"/5", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Out of range delete answered %d want 404", resp.StatusCode)
	}
	resp = doJSON(t, client, http.MethodDelete, base+"/abc", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Non numeric index answered %d want 400", resp.StatusCode)
	}

	// malformed entries are rejected before touching the schedule
	resp = doJSON(t, client, http.MethodPost, base, entryBody{
		Day: "Funday", Start: "09:00", End: "10:00", Subject: "Nope",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Unknown day answered %d want 400", resp.StatusCode)
	}

	resp = doJSON(t, client, http.MethodDelete, base+"/1", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Delete answered %d want 200", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&schedule); err != nil {
		t.Fatalf("Could not decode the delete response: %v", err)
	}
	if len(schedule.Entries) != 1 || schedule.Entries[0].Subject != "Advanced Math" {
		t.Errorf("Expected only the updated Math entry left got %v", schedule.Entries)
	}
}

func TestDownloadICS(t *testing.T) {
	server, client := newTestApp(t, []timetable.Token{
		{Text: "Mon 9-10 Math", Row: 0, Col: 0},
	})
	uploadImage(t, server, client)

	resp, err := client.Get(server.URL + "/download/timetable.ics?anchor=2024-01-01")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Download answered %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/calendar") {
		t.Errorf("Expected a text/calendar response got %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "timetable_schedule.ics") {
		t.Errorf("Expected the attachment filename got %q", got)
	}

	document, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Could not read the calendar: %v", err)
	}
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"SUMMARY:Math",
		"DTSTART:20240101T090000Z",
		"RRULE:FREQ=WEEKLY;BYDAY=MO",
	} {
		if !strings.Contains(string(document), want) {
			t.Errorf("Calendar is missing %q:\n%s", want, document)
		}
	}
}

func TestDownloadICSRejectsBadParams(t *testing.T) {
	server, client := newTestApp(t, []timetable.Token{
		{Text: "Mon 9-10 Math", Row: 0, Col: 0},
	})
	uploadImage(t, server, client)

	for _, query := range []string{"?anchor=January+1st", "?tz=Mars/Olympus"} {
		resp, err := client.Get(server.URL + "/download/timetable.ics" + query)
		if err != nil {
			t.Fatalf("Download %s failed: %v", query, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Download %s answered %d want 400", query, resp.StatusCode)
		}
	}
}

func TestDownloadICSEmptySchedule(t *testing.T) {
	server, client := newTestApp(t, []timetable.Token{
		{Text: "Mon 9-10 Math", Row: 0, Col: 0},
	})
	uploadImage(t, server, client)

	resp := doJSON(t, client, http.MethodDelete, server.URL+"/api/schedule/0", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Delete answered %d", resp.StatusCode)
	}

	resp, err := client.Get(server.URL + "/download/timetable.ics")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Empty schedule download answered %d want 409", resp.StatusCode)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	server, client := newTestApp(t, nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="timetable.gif"`)
	header.Set("Content-Type", "image/gif")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("Could not build the upload: %v", err)
	}
	fmt.Fprint(part, "GIF89a not a timetable")
	writer.Close()

	resp, err := client.Post(server.URL+"/api/analyze", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("Upload request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Unsupported upload answered %d want 400", resp.StatusCode)
	}
}
