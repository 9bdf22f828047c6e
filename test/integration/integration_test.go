package integration

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lynxoskar/fileServe200"
)

func startServer(t *testing.T, env map[string]string) *fileserve.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		FromDockerfile: testcontainers.FromDockerfile{
			Context:    "../../", // Root of repo
			Dockerfile: "Dockerfile",
			KeepImage:  true,
		},
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor:   wait.ForLog("Starting server"),
		Cmd:          []string{"serve"},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "8080")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	return fileserve.NewClient(fmt.Sprintf("http://%s:%s", host, port.Port()), &http.Client{Timeout: 10 * time.Second})
}

func TestUploadListDownload(t *testing.T) {
	c := startServer(t, map[string]string{"FILESERVE_CLEANUP_INTERVAL_HOURS": "0"})
	ctx := context.Background()

	content := []byte("hello from the container")
	sum := sha256.Sum256(content)

	stored, err := c.Upload(ctx, "inbox", "hello.txt", bytes.NewReader(content), hex.EncodeToString(sum[:]))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if stored.Path != "inbox/hello.txt" || stored.Size != int64(len(content)) {
		t.Errorf("unexpected stored file: %+v", stored)
	}

	l, err := c.List(ctx, "inbox", fileserve.ListOptions{Sort: "size", Order: "desc"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(l.Entries) != 1 || l.Entries[0].Name != "hello.txt" {
		t.Fatalf("unexpected listing: %+v", l.Entries)
	}

	var buf bytes.Buffer
	if _, err := c.Download(ctx, "inbox/hello.txt", &buf); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), content) {
		t.Errorf("downloaded %q, want %q", buf.String(), content)
	}
}

func TestCleanupSizeBudget(t *testing.T) {
	c := startServer(t, map[string]string{
		"FILESERVE_CLEANUP_INTERVAL_HOURS": "0",
		"FILESERVE_MAX_SIZE_MB":            "1",
	})
	ctx := context.Background()

	chunk := bytes.Repeat([]byte("x"), 400<<10)
	sum := sha256.Sum256(chunk)
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		if _, err := c.Upload(ctx, "", name, bytes.NewReader(chunk), hex.EncodeToString(sum[:])); err != nil {
			t.Fatalf("Upload %s failed: %v", name, err)
		}
		// mtimes need to differ for a stable oldest-first order.
		time.Sleep(1100 * time.Millisecond)
	}

	res, err := c.Cleanup(ctx, true)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if res.Plan == nil || len(res.Plan.Size) != 1 || res.Plan.Size[0].Path != "a.bin" {
		t.Fatalf("unexpected plan: %+v", res.Plan)
	}

	res, err = c.Cleanup(ctx, false)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if res.Report == nil || res.Report.SizeDeleted != 1 || len(res.Report.Failures) != 0 {
		t.Fatalf("unexpected report: %+v", res.Report)
	}

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.State != "idle" || st.LastPass == nil || st.LastPass.ID != res.Report.ID {
		t.Errorf("unexpected status: %+v", st)
	}
}
