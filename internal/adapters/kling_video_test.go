package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ap-ppt-video/internal/domain"
	"ap-ppt-video/internal/generate"
)

func newTestKlingAdapter(serverURL string) *KlingVideoAdapter {
	a := NewKlingVideoAdapter(http.DefaultClient, "access-key-12345", "secret-key-12345", "kling-v2-6", "pro")
	a.baseURL = serverURL
	return a
}

func TestSignToken_Claims(t *testing.T) {
	a := newTestKlingAdapter("")
	now := time.Now()

	signed, err := a.signToken(now)
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		require.Equal(t, "HS256", token.Method.Alg())
		return []byte("secret-key-12345"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "access-key-12345", claims["iss"])
	assert.Equal(t, float64(now.Add(30*time.Minute).Unix()), claims["exp"])
	assert.Equal(t, float64(now.Add(-5*time.Second).Unix()), claims["nbf"])
}

func TestSubmit_SendsImagePairAndBearer(t *testing.T) {
	var gotAuth string
	var gotBody klingSubmitRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/videos/image2video", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"code":0,"message":"ok","data":{"task_id":"task-42"}}`))
	}))
	defer server.Close()

	a := newTestKlingAdapter(server.URL)
	taskID, err := a.Submit(context.Background(), generate.VideoRequest{
		StartImage:      []byte("start"),
		EndImage:        []byte("end"),
		Prompt:          "morph",
		NegativePrompt:  "warping text",
		DurationSeconds: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "task-42", taskID)

	assert.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	assert.Equal(t, "kling-v2-6", gotBody.ModelName)
	assert.Equal(t, "pro", gotBody.Mode)
	assert.Equal(t, "5", gotBody.Duration)
	assert.NotEmpty(t, gotBody.Image)
	assert.NotEmpty(t, gotBody.ImageTail)
	// 資格情報がペイロードに混入していないこと。
	raw, _ := json.Marshal(gotBody)
	assert.NotContains(t, string(raw), "secret-key-12345")
}

func TestStatus_SucceededReturnsVideoURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/videos/image2video/task-42", r.URL.Path)
		w.Write([]byte(`{"code":0,"data":{"task_id":"task-42","task_status":"succeed",
			"task_result":{"videos":[{"url":"https://cdn.example.com/v.mp4"}]}}}`))
	}))
	defer server.Close()

	a := newTestKlingAdapter(server.URL)
	status, err := a.Status(context.Background(), "task-42")
	require.NoError(t, err)
	assert.Equal(t, generate.VideoTaskSucceeded, status.State)
	assert.Equal(t, "https://cdn.example.com/v.mp4", status.VideoURL)
}

func TestCall_ErrorClassification(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		wantFatal  bool
	}{
		{"unauthorized is fatal", http.StatusUnauthorized, true},
		{"bad request is fatal", http.StatusBadRequest, true},
		{"rate limit is transient", http.StatusTooManyRequests, false},
		{"server error is transient", http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.statusCode)
			}))
			defer server.Close()

			a := newTestKlingAdapter(server.URL)
			_, err := a.Status(context.Background(), "task-1")
			require.Error(t, err)
			assert.Equal(t, tc.wantFatal, domain.IsFatalProvider(err))
			assert.Equal(t, !tc.wantFatal, domain.IsTransientProvider(err))
		})
	}
}

func TestKlingDuration_Rounding(t *testing.T) {
	assert.Equal(t, "5", klingDuration(5))
	assert.Equal(t, "5", klingDuration(7))
	assert.Equal(t, "10", klingDuration(8))
	assert.Equal(t, "10", klingDuration(10))
}
