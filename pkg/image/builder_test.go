package image

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newAppDir(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, dockerfile), []byte("FROM python:3.11-slim\n"), 0600))
	return dir
}

func newBuilder(t *testing.T, runner executor.Runner, appDir, tag string) *Builder {
	return NewBuilder(runner, &config.Config{AppDir: appDir, ImageName: "rag-app", ImageTag: tag}, zaptest.NewLogger(t).Sugar())
}

func TestTag(t *testing.T) {
	t.Run("Explicit tag", func(t *testing.T) {
		require.Equal(t, "1.0.0", newBuilder(t, &executor.MockRunner{}, newAppDir(t), "1.0.0").Tag())
	})

	t.Run("Commit hash of git repository", func(t *testing.T) {
		dir := newAppDir(t)
		repo, err := gogit.PlainInit(dir, false)
		require.NoError(t, err)
		w, err := repo.Worktree()
		require.NoError(t, err)
		_, err = w.Add(dockerfile)
		require.NoError(t, err)
		hash, err := w.Commit("app", &gogit.CommitOptions{
			Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
		})
		require.NoError(t, err)

		require.Equal(t, hash.String()[:8], newBuilder(t, &executor.MockRunner{}, dir, "").Tag())
	})

	t.Run("Uncommitted changes add content hash", func(t *testing.T) {
		dir := newAppDir(t)
		repo, err := gogit.PlainInit(dir, false)
		require.NoError(t, err)
		w, err := repo.Worktree()
		require.NoError(t, err)
		_, err = w.Add(dockerfile)
		require.NoError(t, err)
		hash, err := w.Commit("app", &gogit.CommitOptions{
			Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
		})
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('changed')"), 0600))
		dirtyTag := newBuilder(t, &executor.MockRunner{}, dir, "").Tag()
		require.True(t, strings.HasPrefix(dirtyTag, hash.String()[:8]+dirtyTagInfix))
		require.Len(t, dirtyTag, 8+len(dirtyTagInfix)+sourceTagLength)

		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('changed again')"), 0600))
		require.NotEqual(t, dirtyTag, newBuilder(t, &executor.MockRunner{}, dir, "").Tag())
	})

	t.Run("Content hash outside of git", func(t *testing.T) {
		dir := newAppDir(t)
		tag := newBuilder(t, &executor.MockRunner{}, dir, "").Tag()
		require.True(t, strings.HasPrefix(tag, sourceTagPrefix))
		require.Len(t, tag, len(sourceTagPrefix)+sourceTagLength)
		require.Equal(t, tag, newBuilder(t, &executor.MockRunner{}, dir, "").Tag())
	})

	t.Run("Unreadable directory falls back to latest", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "missing")
		require.Equal(t, defaultTag, newBuilder(t, &executor.MockRunner{}, dir, "").Tag())
	})
}

func TestBuildAndPush(t *testing.T) {
	runner := &executor.MockRunner{}
	dir := newAppDir(t)
	builder := newBuilder(t, runner, dir, "abc")

	ref, err := builder.BuildAndPush(context.Background(), "acrragappdev.azurecr.io")
	require.NoError(t, err)
	require.Equal(t, "acrragappdev.azurecr.io/rag-app:abc", ref)
	require.Equal(t, []string{
		"docker build --tag acrragappdev.azurecr.io/rag-app:abc " + dir,
		"docker push acrragappdev.azurecr.io/rag-app:abc",
	}, runner.CommandLines())

	t.Run("Failed build skips push", func(t *testing.T) {
		runner := &executor.MockRunner{Handler: func(cmd executor.Command) (*executor.Result, error) {
			return nil, &executor.ExitError{Command: cmd.String(), Code: 125}
		}}
		_, err := newBuilder(t, runner, dir, "abc").BuildAndPush(context.Background(), "acrragappdev.azurecr.io")
		require.Error(t, err)
		require.Equal(t, 125, executor.ExitCode(err))
		require.Len(t, runner.Commands(), 1)
	})

	t.Run("Missing Dockerfile", func(t *testing.T) {
		_, err := newBuilder(t, &executor.MockRunner{}, t.TempDir(), "abc").BuildAndPush(context.Background(), "acr.azurecr.io")
		require.Error(t, err)
	})

	t.Run("Missing registry", func(t *testing.T) {
		_, err := builder.BuildAndPush(context.Background(), "")
		require.Error(t, err)
	})
}
