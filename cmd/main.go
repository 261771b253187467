package main

import (
	"fmt"
	"os"
	"path/filepath"

	cleanupCmd "github.com/kyma-incubator/rag-deployer/cmd/cleanup"
	deployCmd "github.com/kyma-incubator/rag-deployer/cmd/deploy"
	preflightCmd "github.com/kyma-incubator/rag-deployer/cmd/preflight"
	smokeTestCmd "github.com/kyma-incubator/rag-deployer/cmd/smoketest"
	"github.com/kyma-incubator/rag-deployer/internal/cli"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
)

func main() {
	o := &cli.Options{}
	cmd := cli.NewRootCommand(
		o,
		filepath.Base(os.Args[0]),
		"RAG application deployer",
		"Provisions the Azure infrastructure of the RAG application, deploys it to AKS and verifies it with a smoke test")

	cmd.AddCommand(deployCmd.NewCmd(deployCmd.NewOptions(o)))
	cmd.AddCommand(cleanupCmd.NewCmd(cleanupCmd.NewOptions(o)))
	cmd.AddCommand(smokeTestCmd.NewCmd(smokeTestCmd.NewOptions(o)))
	cmd.AddCommand(preflightCmd.NewCmd(preflightCmd.NewOptions(o)))

	ctx, cancel := cli.NewContext()
	err := cmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(executor.ExitCode(err))
	}
}
