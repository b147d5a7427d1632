package containerbuild

import (
	"context"
	"testing"
)

func newTestContainer() *Container {
	return NewContainer("cname", "my-image", "bla", "source", false, true, "repo-b1-volume")
}

func TestDindOptsNotDind(t *testing.T) {
	c := newTestContainer()
	if got := c.dindOpts(); got != " " {
		t.Errorf("dindOpts() = %q, want a single space", got)
	}
}

func TestDindOptsNoVolume(t *testing.T) {
	c := newTestContainer()
	c.IsDind = true
	c.DindVolume = false
	if got, want := c.dindOpts(), "--privileged "; got != want {
		t.Errorf("dindOpts() = %q, want %q", got, want)
	}
}

func TestDindOptsWithVolume(t *testing.T) {
	c := newTestContainer()
	c.IsDind = true
	c.VolumeName = "i-b1-volume"
	want := "--privileged --mount source=i-b1-volume,destination=/var/lib/docker/"
	if got := c.dindOpts(); got != want {
		t.Errorf("dindOpts() = %q, want %q", got, want)
	}
}

func TestStartContainerDoesNotExist(t *testing.T) {
	c := newTestContainer()
	var captured []string
	c.Exec = func(ctx context.Context, cmd string) (string, error) {
		captured = append(captured, cmd)
		if len(captured) == 1 {
			return "1", nil // container_exists: docker ps -a | wc -l == 1 => false
		}
		return "2", nil // wait_start poll: running
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "docker run -d -t   --name cname my-image"
	if captured[1] != want {
		t.Errorf("start command = %q, want %q", captured[1], want)
	}
}

func TestStartContainerAlreadyExists(t *testing.T) {
	c := newTestContainer()
	var captured []string
	c.Exec = func(ctx context.Context, cmd string) (string, error) {
		captured = append(captured, cmd)
		return "2", nil
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "docker start cname"
	if captured[1] != want {
		t.Errorf("start command = %q, want %q", captured[1], want)
	}
}

func TestCopyIn(t *testing.T) {
	c := newTestContainer()
	var captured []string
	c.Exec = func(ctx context.Context, cmd string) (string, error) {
		captured = append(captured, cmd)
		return "", nil
	}

	if err := c.CopyIn(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantCp := "docker cp source cname:/home/bla/src"
	wantChown := "docker exec -u root -t cname chown -R bla:bla /home/bla/src"
	if captured[0] != wantCp {
		t.Errorf("copy command = %q, want %q", captured[0], wantCp)
	}
	if captured[1] != wantChown {
		t.Errorf("chown command = %q, want %q", captured[1], wantChown)
	}
}

func TestKillRmAndRmSrc(t *testing.T) {
	c := newTestContainer()
	var captured []string
	c.Exec = func(ctx context.Context, cmd string) (string, error) {
		captured = append(captured, cmd)
		return "", nil
	}

	ctx := context.Background()
	_ = c.Kill(ctx)
	_ = c.Rm(ctx)
	_ = c.RmSrc(ctx)

	want := []string{
		"docker kill cname",
		"docker rm -v cname",
		"docker exec -u root cname rm -rf /home/bla/src",
	}
	for i, w := range want {
		if captured[i] != w {
			t.Errorf("command %d = %q, want %q", i, captured[i], w)
		}
	}
}

func TestEnvStripsTrailingCR(t *testing.T) {
	c := newTestContainer()
	c.Exec = func(ctx context.Context, cmd string) (string, error) {
		return "PATH=/usr/bin\r\nHOME=/home/bla\r\n", nil
	}

	env, err := c.Env(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env["PATH"] != "/usr/bin" {
		t.Errorf("PATH = %q, want no trailing CR", env["PATH"])
	}
	if env["HOME"] != "/home/bla" {
		t.Errorf("HOME = %q", env["HOME"])
	}
}

func TestIsDindPlatform(t *testing.T) {
	cases := map[string]bool{
		"docker":     true,
		"dockerkube": true,
		"some-plat":  false,
		"linux":      false,
	}
	for platform, want := range cases {
		if got := isDindPlatform(platform); got != want {
			t.Errorf("isDindPlatform(%q) = %v, want %v", platform, got, want)
		}
	}
}
