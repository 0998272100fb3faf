//go:build e2e

package api_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Container setup and shared assertions for the API end-to-end tests.
 */

const (
	testImageName = "gatekeep-api-test:latest"

	jwtSecret    = "e2e-secret-0123456789abcdef0123456789"
	testPassword = "Hunter2!"
)

// TestMain builds the Docker image once before all tests and removes it
// after they complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building API Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up API Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	cmd := exec.CommandContext(context.Background(), "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/api/Dockerfile",
		"../../../")
	cmd.Stdout = os.Stdout
	return cmd.Run()
}

func cleanupDockerImage() {
	cmd := exec.CommandContext(context.Background(), "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

// relaxedLimits raises every rate limit so functional tests never trip them.
var relaxedLimits = map[string]string{
	"RATE_LIMIT_STRICT_REQUESTS":   "1000",
	"RATE_LIMIT_STRICT_BURST":      "1000",
	"RATE_LIMIT_MODERATE_REQUESTS": "1000",
	"RATE_LIMIT_MODERATE_BURST":    "1000",
}

// setupAPIContainer starts the API with relaxed rate limits plus extra env
// and returns its base URL.
func setupAPIContainer(t *testing.T, extra map[string]string) string {
	t.Helper()
	ctx := context.Background()

	env := map[string]string{
		"JWT_SECRET": jwtSecret,
		"ENV":        "test",
		"LOG_LEVEL":  "info",
		"LOG_FORMAT": "json",
		// Point the third-party call somewhere that always refuses quickly.
		"MISC_CAT_FACTS_URL":       "http://127.0.0.1:1/facts/random",
		"HTTP_RETRY_COUNT":         "2",
		"HTTP_RETRY_TIMEOUT":       "3",
		"HTTP_RETRY_DELAY_SECONDS": "0.1",
	}
	for k, v := range relaxedLimits {
		env[k] = v
	}
	for k, v := range extra {
		env[k] = v
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImageName,
			ExposedPorts: []string{"8080/tcp"},
			Env:          env,
			WaitingFor: wait.ForHTTP("/livez").
				WithPort("8080/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

// createUser registers a uniquely named user and returns its session.
func createUser(t *testing.T, client *authsdk.SDKClient, username string) *authsdk.Session {
	t.Helper()

	session, err := client.CreateUser(t.Context(), authsdk.CreateUserRequest{
		Username: username,
		Email:    strings.ToLower(username) + "@example.com",
		Password: testPassword,
	})
	require.NoError(t, err, "CreateUser should succeed")
	require.NotEmpty(t, session.Tokens().AuthToken)
	require.NotEmpty(t, session.Tokens().RefreshToken)

	return session
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
