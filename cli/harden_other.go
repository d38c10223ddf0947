//go:build !unix

package cli

func HardenProcess() error { return nil }
