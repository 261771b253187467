package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWorkspaceFactory(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	t.Run("Local directory", func(t *testing.T) {
		dir := t.TempDir()
		wsf := Factory{Logger: logger}
		ws, err := wsf.Get(context.Background(), "", "", dir)
		require.NoError(t, err)
		require.Equal(t, dir, ws.ManifestsDir)
	})

	t.Run("Missing local directory", func(t *testing.T) {
		wsf := Factory{Logger: logger}
		_, err := wsf.Get(context.Background(), "", "", filepath.Join(t.TempDir(), "missing"))
		require.Error(t, err)
	})

	t.Run("Repository directory", func(t *testing.T) {
		wsf := Factory{StorageDir: "/tmp/ws", Logger: logger}
		require.Equal(t, filepath.Join("/tmp/ws", "https_github.com_org_rag-manifests", "release_1.0"),
			wsf.repositoryDir("https://github.com/org/rag-manifests.git", "release/1.0"))
	})

	t.Run("Cached clone is re-used", func(t *testing.T) {
		storageDir := t.TempDir()
		wsf := Factory{StorageDir: storageDir, Logger: logger}
		repoDir := wsf.repositoryDir("https://github.com/org/rag-manifests.git", "main")
		require.NoError(t, os.MkdirAll(filepath.Join(repoDir, "k8s"), 0755))

		ws, err := wsf.Get(context.Background(), "https://github.com/org/rag-manifests.git", "main", "k8s")
		require.NoError(t, err)
		require.Equal(t, filepath.Join(repoDir, "k8s"), ws.ManifestsDir)
		require.Equal(t, "main", ws.Revision)
	})
}
