package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
)

func readAll(t *testing.T, src Source) (string, int64) {
	t.Helper()
	st, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer st.Close()
	b, err := io.ReadAll(st)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(b), st.Size
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFile(t *testing.T) {
	path := writeFile(t, "a.jsonl", []byte("{\"a\":1}\n"))

	got, size := readAll(t, File(path))
	if got != "{\"a\":1}\n" {
		t.Errorf("content = %q", got)
	}
	if size != 8 {
		t.Errorf("Size = %d, want 8", size)
	}

	if _, err := File(filepath.Join(t.TempDir(), "missing")).Open(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := File(t.TempDir()).Open(context.Background()); err == nil {
		t.Error("expected error for directory")
	}
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.jsonl":
			w.Header().Set("Content-Length", "5")
			io.WriteString(w, "hello")
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	got, size := readAll(t, HTTP(srv.URL+"/ok.jsonl", srv.Client()))
	if got != "hello" || size != 5 {
		t.Errorf("got %q size %d", got, size)
	}

	_, err := HTTP(srv.URL+"/missing", srv.Client()).Open(context.Background())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Open() error = %v, want status text", err)
	}
}

type fakeS3 struct {
	bucket, key string
	body        string
	err         error
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(f.body)),
		ContentLength: aws.Int64(int64(len(f.body))),
	}, nil
}

func TestS3(t *testing.T) {
	fake := &fakeS3{body: "[1,2]"}
	src := S3("logs", "2025/run.json", fake)

	if src.Name() != "s3://logs/2025/run.json" {
		t.Errorf("Name() = %q", src.Name())
	}
	got, size := readAll(t, src)
	if got != "[1,2]" || size != 5 {
		t.Errorf("got %q size %d", got, size)
	}
	if fake.bucket != "logs" || fake.key != "2025/run.json" {
		t.Errorf("requested %s/%s", fake.bucket, fake.key)
	}

	failing := S3("b", "k", &fakeS3{err: errors.New("denied")})
	if _, err := failing.Open(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		in        string
		bucket    string
		key       string
		expectErr bool
	}{
		{"s3://b/k.jsonl", "b", "k.jsonl", false},
		{"S3://b/dir/k.json", "b", "dir/k.json", false},
		{"s3://b", "", "", true},
		{"s3:///k", "", "", true},
		{"s3://b/", "", "", true},
		{"https://b/k", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.in)
			if (err != nil) != tt.expectErr {
				t.Fatalf("error = %v, expectErr %v", err, tt.expectErr)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Errorf("got %q %q", bucket, key)
			}
		})
	}
}

func TestGzip(t *testing.T) {
	plain := "{\"a\":1}\n{\"b\":2}\n"

	t.Run("magic bytes", func(t *testing.T) {
		path := writeFile(t, "log.jsonl", gzipBytes(t, plain))
		got, size := readAll(t, Gzip(File(path)))
		if got != plain {
			t.Errorf("content = %q", got)
		}
		if size != 0 {
			t.Errorf("Size = %d, want unknown", size)
		}
	})

	t.Run("name drops suffix", func(t *testing.T) {
		src := Gzip(File("/tmp/x.json.gz"))
		if src.Name() != "/tmp/x.json" {
			t.Errorf("Name() = %q", src.Name())
		}
	})

	t.Run("plain passes through", func(t *testing.T) {
		path := writeFile(t, "log.jsonl", []byte(plain))
		got, size := readAll(t, Gzip(File(path)))
		if got != plain || size != int64(len(plain)) {
			t.Errorf("got %q size %d", got, size)
		}
	})

	t.Run("empty", func(t *testing.T) {
		path := writeFile(t, "log.jsonl.gz", nil)
		got, _ := readAll(t, Gzip(File(path)))
		if got != "" {
			t.Errorf("content = %q", got)
		}
	})

	t.Run("idle reader honors cancellation", func(t *testing.T) {
		pr, pw := io.Pipe()
		defer pw.Close()

		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error, 1)
		go func() {
			_, err := Gzip(Reader("-", pr)).Open(ctx)
			errc <- err
		}()

		cancel()
		select {
		case err := <-errc:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Open() error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Open() blocked on a reader that never produces bytes")
		}
	})

	t.Run("corrupt gz", func(t *testing.T) {
		path := writeFile(t, "log.jsonl.gz", []byte("not gzip"))
		if _, err := Gzip(File(path)).Open(context.Background()); err == nil {
			t.Error("expected error")
		}
	})
}

func TestFromArg(t *testing.T) {
	tests := []struct {
		arg       string
		opts      Options
		wantName  string
		expectErr bool
	}{
		{arg: "https://example.com/a.jsonl", wantName: "https://example.com/a.jsonl"},
		{arg: "s3://bucket/a.json.gz", wantName: "s3://bucket/a.json"},
		{arg: "-", wantName: "-"},
		{arg: "./logs/a.jsonl", wantName: "./logs/a.jsonl"},
		{arg: "./logs/a.jsonl", opts: Options{Follow: true}, wantName: "./logs/a.jsonl"},
		{arg: "ftp://host/a", expectErr: true},
		{arg: "s3://bucket", expectErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			src, err := FromArg(tt.arg, tt.opts)
			if (err != nil) != tt.expectErr {
				t.Fatalf("error = %v, expectErr %v", err, tt.expectErr)
			}
			if err == nil && src.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", src.Name(), tt.wantName)
			}
		})
	}
}

func TestFromArg_Stdin(t *testing.T) {
	src, err := FromArg("-", Options{Stdin: strings.NewReader("line\n")})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := readAll(t, src)
	if got != "line\n" {
		t.Errorf("content = %q", got)
	}
}

func TestFollow(t *testing.T) {
	path := writeFile(t, "live.jsonl", []byte("first\n"))
	stop := make(chan struct{})

	st, err := Follow(path, stop).Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer st.Close()

	done := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(st)
		done <- string(b)
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("second\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	time.Sleep(100 * time.Millisecond)
	close(stop)

	select {
	case got := <-done:
		if got != "first\nsecond\n" {
			t.Errorf("content = %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}
}

func TestFollow_CloseUnblocksRead(t *testing.T) {
	path := writeFile(t, "live.jsonl", nil)

	st, err := Follow(path, nil).Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := st.Read(make([]byte, 16))
		errc <- err
	}()

	time.Sleep(50 * time.Millisecond)
	st.Close()

	select {
	case err := <-errc:
		if err == nil {
			t.Error("Read() after Close should fail")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Read did not return after Close")
	}
}

func TestFollow_ContextCancel(t *testing.T) {
	path := writeFile(t, "live.jsonl", nil)
	ctx, cancel := context.WithCancel(context.Background())

	st, err := Follow(path, nil).Open(ctx)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer st.Close()

	cancel()
	if _, err := st.Read(make([]byte, 16)); !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
}
