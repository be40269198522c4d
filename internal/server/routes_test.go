package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"screenrec/internal/capture"
	"screenrec/internal/config"
	"screenrec/internal/database"
	"screenrec/internal/recorder"
	"screenrec/internal/recordings"
)

// Test server instance shared by the suite. Recording endpoints run
// against fake capture backends and a stub encoder; history endpoints
// additionally need Mongo and skip when none is reachable.
var (
	testServer *FiberServer
	testCfg    *config.Config
	testDB     database.Service
	testMongo  bool
	testRoot   string
	fakeRun    *fakeRunner

	mongoContainer *mongodb.MongoDBContainer
)

func TestMain(m *testing.M) {
	setupTestServer()
	code := m.Run()
	teardownTestServer()
	os.Exit(code)
}

func setupTestServer() {
	var err error
	testRoot, err = os.MkdirTemp("", "screenrec-server-test-")
	if err != nil {
		panic(fmt.Sprintf("temp dir: %v", err))
	}

	dbCfg := connectTestMongo()

	testCfg = &config.Config{
		Server: config.ServerConfig{
			Port:         8080,
			Host:         "localhost",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  10 * time.Second,
		},
		Database: dbCfg,
		Auth:     config.AuthConfig{}, // no API key, the /api group is open
		Recording: config.RecordingConfig{
			RecordingsDir: filepath.Join(testRoot, "recordings"),
			TempDir:       filepath.Join(testRoot, "temp"),
			FinalExt:      "mp4",
			TempVideoExt:  "avi",

			DefaultFPS:   20,
			TargetWidth:  1080,
			TargetHeight: 1920,

			SampleRate: 44100,
			Channels:   2,

			SystemAudioOffset: -200 * time.Millisecond,
			MinAudioBytes:     1024,
			MinVideoBytes:     1024,

			JoinTimeout:       5 * time.Second,
			QueuePollInterval: 20 * time.Millisecond,
			QueueSize:         64,

			FFmpegPath:  writeStubFFmpeg(),
			FFprobePath: writeStubFFprobe(),
		},
		Security: config.SecurityConfig{
			CORSOrigins: []string{"*"},
			RateLimit:   10000,
			RateWindow:  time.Minute,
		},
	}

	for _, dir := range []string{testCfg.Recording.RecordingsDir, testCfg.Recording.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			panic(fmt.Sprintf("mkdir %s: %v", dir, err))
		}
	}

	fakeRun = &fakeRunner{}
	testServer, err = newServer(testCfg, testDB, fakeCapabilities(testCfg), testLog())
	if err != nil {
		panic(fmt.Sprintf("build test server: %v", err))
	}
	testServer.devices = fakeDeviceList
	testServer.RegisterFiberRoutes()
}

// connectTestMongo prefers DB_URI, then a disposable container, then
// an offline stand-in that only supports tests which never touch the
// database.
func connectTestMongo() config.DatabaseConfig {
	log := testLog()

	if uri := os.Getenv("DB_URI"); uri != "" {
		cfg := config.DatabaseConfig{URI: uri, Name: "screenrec_server_test"}
		db, err := database.New(cfg, log)
		if err != nil {
			panic(fmt.Sprintf("DB_URI set but unusable: %v", err))
		}
		testDB = db
		testMongo = true
		dropHistory(db)
		return cfg
	}

	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	if err == nil {
		mongoContainer = container
		uri, err := container.ConnectionString(ctx)
		if err != nil {
			panic(fmt.Sprintf("mongo container connection string: %v", err))
		}
		cfg := config.DatabaseConfig{URI: uri, Name: "screenrec_server_test"}
		db, err := database.New(cfg, log)
		if err != nil {
			panic(fmt.Sprintf("connect to mongo container: %v", err))
		}
		testDB = db
		testMongo = true
		return cfg
	}

	fmt.Fprintf(os.Stderr, "server: mongo-backed tests will skip: %v\n", err)
	cfg := config.DatabaseConfig{URI: "mongodb://127.0.0.1:27017", Name: "screenrec_server_test"}
	client, err := mongo.Connect(ctx, mongooptions.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(2*time.Second))
	if err != nil {
		panic(fmt.Sprintf("offline mongo client: %v", err))
	}
	testDB = offlineDB{db: client.Database(cfg.Name)}
	return cfg
}

func teardownTestServer() {
	if testDB != nil {
		_ = testDB.Close()
	}
	if mongoContainer != nil {
		_ = testcontainers.TerminateContainer(mongoContainer)
	}
	if testRoot != "" {
		_ = os.RemoveAll(testRoot)
	}
}

func dropHistory(db database.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = db.GetDatabase().Collection("recordings").Drop(ctx)
}

func requireMongo(t *testing.T) {
	t.Helper()
	if !testMongo {
		t.Skip("no mongo available")
	}
}

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// offlineDB satisfies database.Service without a reachable server so
// the suite can still exercise endpoints that never hit Mongo.
type offlineDB struct{ db *mongo.Database }

func (o offlineDB) Health() map[string]string {
	return map[string]string{"message": "Database is healthy", "status": "connected"}
}
func (o offlineDB) GetDatabase() *mongo.Database { return o.db }
func (o offlineDB) Close() error                 { return nil }

// ----- fake capture stack ---------------------------------------------------

func fakeCapabilities(cfg *config.Config) recorder.Capabilities {
	return recorder.Capabilities{
		Capturer:   fakeCapturer{},
		Opener:     fakeOpener{},
		VideoSink:  newFakeVideoSink,
		AudioSink:  newFakeAudioSink,
		Runner:     fakeRun,
		FFmpegPath: cfg.Recording.FFmpegPath,
		Clock:      recorder.NewClock(),
	}
}

type fakeCapturer struct{}

func (fakeCapturer) PrimaryBounds() (image.Rectangle, error) {
	return image.Rect(0, 0, 1920, 1080), nil
}

func (fakeCapturer) Capture(region image.Rectangle) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy())), nil
}

type fakeOpener struct{}

func (fakeOpener) Open(_ capture.AudioDeviceConfig, onData func([]byte)) (capture.AudioInput, error) {
	return &fakeAudioInput{onData: onData}, nil
}

type fakeAudioInput struct{ onData func([]byte) }

// Start hands over a few buffers immediately, enough to make the
// track count as captured.
func (in *fakeAudioInput) Start() error {
	buf := make([]byte, 2048)
	for i := 0; i < 4; i++ {
		in.onData(buf)
	}
	return nil
}

func (in *fakeAudioInput) Close() error { return nil }

type fileSink struct{ f *os.File }

// newFakeVideoSink writes fixed-size junk per frame so the temp file
// clears the assembler's minimum size.
func newFakeVideoSink(path string, _, _, _ int) (recorder.FrameSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &fileSink{f: f}, nil
}

func (s *fileSink) WriteFrame(*image.RGBA) error {
	_, err := s.f.Write(make([]byte, 4096))
	return err
}

func (s *fileSink) Close() error { return s.f.Close() }

type fileAudioSink struct{ f *os.File }

func newFakeAudioSink(path string, _, _ int) (recorder.AudioSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &fileAudioSink{f: f}, nil
}

func (s *fileAudioSink) WriteS16LE(p []byte) error {
	_, err := s.f.Write(p)
	return err
}

func (s *fileAudioSink) Close() error { return s.f.Close() }

// fakeRunner stands in for the assembly encoder: it records the
// invocation and produces the final file.
type fakeRunner struct {
	mu       sync.Mutex
	lastArgs []string
}

func (r *fakeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	r.mu.Lock()
	r.lastArgs = append([]string(nil), args...)
	r.mu.Unlock()

	if len(args) > 0 {
		final := args[len(args)-1]
		if err := os.WriteFile(final, make([]byte, 8192), 0o644); err != nil {
			return "", err
		}
	}
	return "", nil
}

func (r *fakeRunner) last() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastArgs
}

func fakeDeviceList() (*capture.DeviceList, error) {
	return &capture.DeviceList{
		Capture: []capture.Device{
			{Name: "Built-in Microphone", Default: true},
		},
		Playback: []capture.Device{
			{Name: "Monitor of Built-in Audio", Default: true, Loopback: true},
		},
	}, nil
}

func writeStubFFmpeg() string {
	path := filepath.Join(testRoot, "ffmpeg")
	script := "#!/bin/sh\n" +
		"echo \"ffmpeg version 6.1-test\"\n" +
		"echo \" V..... libx264              H.264\"\n" +
		"echo \" A..... aac                  AAC (Advanced Audio Coding)\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		panic(fmt.Sprintf("write ffmpeg stub: %v", err))
	}
	return path
}

func writeStubFFprobe() string {
	path := filepath.Join(testRoot, "ffprobe")
	script := "#!/bin/sh\n" +
		"cat <<'EOF'\n" +
		`{"format":{"duration":"1.250"},"streams":[` +
		`{"codec_type":"video","codec_name":"mpeg4","width":1080,"height":1920,"r_frame_rate":"20/1"},` +
		`{"codec_type":"audio","codec_name":"pcm_s16le"}]}` + "\n" +
		"EOF\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		panic(fmt.Sprintf("write ffprobe stub: %v", err))
	}
	return path
}

// ----- request helpers ------------------------------------------------------

func makeRequest(method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req := httptest.NewRequest(method, url, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return testServer.App.Test(req, -1) // -1 disables the test timeout
}

func makeJSONRequest(method, url string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return makeRequest(method, url, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out), "body: %s", body)
	return out
}

// =============================================================================
// Service endpoints
// =============================================================================

func TestBanner(t *testing.T) {
	resp, err := makeRequest("GET", "/", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "screenrec", body["service"])
}

func TestHealthEndpoint(t *testing.T) {
	resp, err := makeRequest("GET", "/health", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body, "database")
	assert.Contains(t, body, "recording")
	assert.Equal(t, false, body["recording"])
}

func TestCORSHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := testServer.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Origin"), "*")
}

func TestWebSocketUpgradeRequired(t *testing.T) {
	resp, err := makeRequest("GET", "/ws", nil, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

// =============================================================================
// Recording control
// =============================================================================

func TestRecordingStatusWhenIdle(t *testing.T) {
	resp, err := makeRequest("GET", "/api/recording/status", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, false, body["recording"])
	assert.Nil(t, body["current_file"])
}

func TestStopWithoutActiveRecording(t *testing.T) {
	resp, err := makeRequest("POST", "/api/recording/stop", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body, "error")
}

func TestStartRecordingValidation(t *testing.T) {
	testCases := []struct {
		name           string
		payload        interface{}
		expectedStatus int
	}{
		{
			name:           "fps too high",
			payload:        map[string]interface{}{"fps": 99},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "fps negative",
			payload:        map[string]interface{}{"fps": -1},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "negative duration",
			payload:        map[string]interface{}{"duration_seconds": -5},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "region enabled without region",
			payload:        map[string]interface{}{"region_enabled": true},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "region with zero size",
			payload: map[string]interface{}{
				"region_enabled": true,
				"region":         map[string]int{"left": 0, "top": 0, "width": 0, "height": 100},
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "region entirely off screen",
			payload: map[string]interface{}{
				"region_enabled": true,
				"region":         map[string]int{"left": 5000, "top": 0, "width": 100, "height": 100},
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown microphone device",
			payload:        map[string]interface{}{"mic_device": "USB Super Mic"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown system device",
			payload:        map[string]interface{}{"system_device": "Imaginary Mix"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := makeJSONRequest("POST", "/api/recording/start", tc.payload)
			require.NoError(t, err)

			assert.Equal(t, tc.expectedStatus, resp.StatusCode)
			body := decodeBody(t, resp)
			assert.Contains(t, body, "error")
		})
	}
}

func TestStartRecordingInvalidJSON(t *testing.T) {
	resp, err := makeRequest("POST", "/api/recording/start",
		strings.NewReader("{not json"), map[string]string{"Content-Type": "application/json"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body, "error")
}

// TestRecordingLifecycle drives a whole run through the HTTP surface:
// start, busy rejection, status, stop, history completion, download
// and delete.
func TestRecordingLifecycle(t *testing.T) {
	requireMongo(t)

	resp, err := makeJSONRequest("POST", "/api/recording/start", map[string]interface{}{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decodeBody(t, resp)
	fileName, _ := started["file"].(string)
	require.NotEmpty(t, fileName)
	assert.Equal(t, string(recordings.StatusRecording), started["status"])

	// Second start while the slot is taken.
	resp, err = makeJSONRequest("POST", "/api/recording/start", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp, err = makeRequest("GET", "/api/recording/status", nil, nil)
	require.NoError(t, err)
	status := decodeBody(t, resp)
	assert.Equal(t, true, status["recording"])
	assert.Equal(t, fileName, status["current_file"])

	// Let the fake pipeline move a few frames before stopping.
	time.Sleep(250 * time.Millisecond)

	resp, err = makeRequest("POST", "/api/recording/stop", nil, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stopped := decodeBody(t, resp)
	assert.Equal(t, fileName, stopped["file"])

	require.Eventually(t, func() bool {
		resp, err := makeRequest("GET", "/api/recording/status", nil, nil)
		if err != nil {
			return false
		}
		body := decodeBody(t, resp)
		return body["recording"] == false
	}, 10*time.Second, 50*time.Millisecond, "recording did not wind down")

	// History closes the entry as COMPLETED with media metadata from
	// the stub probe.
	require.Eventually(t, func() bool {
		rec, err := testServer.history.Get(context.Background(), fileName)
		return err == nil && rec.Status == recordings.StatusCompleted
	}, 10*time.Second, 50*time.Millisecond, "history entry never completed")

	rec, err := testServer.history.Get(context.Background(), fileName)
	require.NoError(t, err)
	assert.True(t, rec.FileExists)
	assert.Greater(t, rec.Frames, int64(0))
	require.NotNil(t, rec.Media)
	assert.InDelta(t, 1.25, rec.Media.Duration, 0.001)
	require.Len(t, rec.Tracks, 3)
	for _, track := range rec.Tracks {
		assert.Equal(t, "success", track.Status, "track %s", track.Label)
	}

	// Both audio temps were usable, so the encoder was asked to mix.
	assert.Contains(t, strings.Join(fakeRun.last(), " "), "amix=inputs=2")

	resp, err = makeRequest("GET", "/api/recordings/"+fileName+"/download", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	resp.Body.Close()

	resp, err = makeRequest("DELETE", "/api/recordings/"+fileName, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = makeRequest("DELETE", "/api/recordings/"+fileName, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// History endpoints
// =============================================================================

func TestListRecordings(t *testing.T) {
	requireMongo(t)
	dropHistory(testDB)

	for i := 0; i < 3; i++ {
		rec := &recordings.Recording{
			Name:      fmt.Sprintf("screen_recording_list_%d.mp4", i),
			Base:      fmt.Sprintf("screen_recording_list_%d", i),
			FilePath:  filepath.Join(testCfg.Recording.RecordingsDir, fmt.Sprintf("screen_recording_list_%d.mp4", i)),
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, testServer.history.Create(context.Background(), rec))
	}

	resp, err := makeRequest("GET", "/api/recordings", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 3, body["count"])

	list, ok := body["recordings"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 3)
	newest := list[0].(map[string]interface{})
	assert.Equal(t, "screen_recording_list_2.mp4", newest["name"])
}

func TestDownloadValidation(t *testing.T) {
	testCases := []struct {
		name           string
		file           string
		expectedStatus int
	}{
		{"parent reference", "..", http.StatusBadRequest},
		{"hidden traversal", "a..b..", http.StatusBadRequest},
		{"missing file", "screen_recording_nope.mp4", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := makeRequest("GET", "/api/recordings/"+tc.file+"/download", nil, nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode)
		})
	}
}

func TestDeleteRecordingValidation(t *testing.T) {
	resp, err := makeRequest("DELETE", "/api/recordings/..", nil, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteUnknownRecording(t *testing.T) {
	requireMongo(t)

	resp, err := makeRequest("DELETE", "/api/recordings/screen_recording_ghost.mp4", nil, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSweepEndpoint(t *testing.T) {
	old := time.Now().Add(-time.Hour)

	orphanVideo := filepath.Join(testCfg.Recording.TempDir, "screen_recording_20240101_010101_temp.avi")
	orphanAudio := filepath.Join(testCfg.Recording.TempDir, "screen_recording_20240101_010101_mic_temp.wav")
	final := filepath.Join(testCfg.Recording.RecordingsDir, "screen_recording_20240101_010101.mp4")
	unrelated := filepath.Join(testCfg.Recording.TempDir, "notes.txt")

	for _, path := range []string{orphanVideo, orphanAudio, final, unrelated} {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, old, old))
	}

	resp, err := makeRequest("POST", "/api/recordings/sweep", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.EqualValues(t, 2, body["removed"])

	assert.NoFileExists(t, orphanVideo)
	assert.NoFileExists(t, orphanAudio)
	assert.FileExists(t, final)
	assert.FileExists(t, unrelated)
}

// =============================================================================
// Devices and encoder
// =============================================================================

func TestListDevicesEndpoint(t *testing.T) {
	resp, err := makeRequest("GET", "/api/devices", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)

	captureList, ok := body["capture"].([]interface{})
	require.True(t, ok)
	require.Len(t, captureList, 1)
	mic := captureList[0].(map[string]interface{})
	assert.Equal(t, "Built-in Microphone", mic["name"])
	assert.Equal(t, true, mic["default"])

	playbackList, ok := body["playback"].([]interface{})
	require.True(t, ok)
	require.Len(t, playbackList, 1)
	assert.Equal(t, true, playbackList[0].(map[string]interface{})["loopback"])
}

func TestListDevicesEndpointFailure(t *testing.T) {
	orig := testServer.devices
	testServer.devices = func() (*capture.DeviceList, error) {
		return nil, fmt.Errorf("backend exploded")
	}
	defer func() { testServer.devices = orig }()

	resp, err := makeRequest("GET", "/api/devices", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body, "error")
}

func TestEncoderEndpoint(t *testing.T) {
	resp, err := makeRequest("GET", "/api/encoder", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["available"])
	assert.Equal(t, true, body["h264"])
	assert.Equal(t, true, body["aac"])
	assert.Contains(t, body["version"], "ffmpeg version")
}

// =============================================================================
// Authentication wiring
// =============================================================================

// TestProtectedAPIGroup builds a second server with an API key set and
// checks the token exchange gates the /api group.
func TestProtectedAPIGroup(t *testing.T) {
	cfg := *testCfg
	cfg.Auth = config.AuthConfig{
		APIKey:    "super-secret-key",
		JWTSecret: "test-jwt-secret",
		TokenTTL:  time.Hour,
	}

	srv, err := newServer(&cfg, testDB, fakeCapabilities(&cfg), testLog())
	require.NoError(t, err)
	srv.devices = fakeDeviceList
	srv.RegisterFiberRoutes()

	request := func(method, url string, body io.Reader, headers map[string]string) *http.Response {
		req := httptest.NewRequest(method, url, body)
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		resp, err := srv.App.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	// No token.
	resp := request("GET", "/api/recording/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Wrong key.
	payload, _ := json.Marshal(map[string]string{"api_key": "wrong"})
	resp = request("POST", "/auth/token", bytes.NewReader(payload), map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Token exchange.
	payload, _ = json.Marshal(map[string]string{"api_key": "super-secret-key"})
	resp = request("POST", "/auth/token", bytes.NewReader(payload), map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := decodeBody(t, resp)["token"].(string)
	require.NotEmpty(t, token)

	resp = request("GET", "/api/recording/status", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
