package gitx_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/forksync/internal/gitx"
)

var _ = Describe("GitRunner.Run", func() {
	var runner *gitx.GitRunner

	BeforeEach(func() {
		runner = &gitx.GitRunner{}
	})

	It("runs git version successfully", func() {
		res, err := runner.Run(context.Background(), "", "version")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ExitCode).To(Equal(0))
		Expect(res.Stdout).To(ContainSubstring("git version"))
	})

	It("errors for nonexistent directory", func() {
		_, err := runner.Run(context.Background(), "/nonexistent/path/xyz", "status")
		Expect(err).To(HaveOccurred())
	})

	It("returns the exit code for failing commands", func() {
		dir := GinkgoT().TempDir()
		res, err := runner.Run(context.Background(), dir, "rev-parse", "HEAD")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ExitCode).NotTo(Equal(0))
		Expect(res.Stderr).NotTo(BeEmpty())
	})

	It("respects context cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := runner.Run(ctx, "", "version")
		if err == nil {
			Expect(res.ExitCode).NotTo(Equal(0))
		}
	})
})

var _ = Describe("Run (checked)", func() {
	It("passes results through on success", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:status --porcelain": {Stdout: " M lib/foo.c\n"},
		}}
		res, err := gitx.Run(context.Background(), mock, "/repo", "status", "--porcelain")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Stdout).To(ContainSubstring("lib/foo.c"))
	})

	It("wraps nonzero exits in a CommandError carrying both streams", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:checkout v1.2.3": {ExitCode: 1, Stdout: "progress", Stderr: "error: pathspec 'v1.2.3' did not match"},
		}}
		_, err := gitx.Run(context.Background(), mock, "/repo", "checkout", "v1.2.3")
		Expect(err).To(HaveOccurred())

		var cmdErr *gitx.CommandError
		Expect(errors.As(err, &cmdErr)).To(BeTrue())
		Expect(cmdErr.ExitCode).To(Equal(1))
		Expect(cmdErr.Args).To(Equal([]string{"checkout", "v1.2.3"}))
		Expect(cmdErr.Stdout).To(Equal("progress"))
		Expect(cmdErr.Stderr).To(ContainSubstring("did not match"))
		Expect(err.Error()).To(ContainSubstring("exit 1"))
	})

	It("surfaces spawn failures", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:version": {Err: errors.New("exec: not found")},
		}}
		_, err := gitx.Run(context.Background(), mock, "/repo", "version")
		Expect(err).To(MatchError(ContainSubstring("not found")))
	})
})

var _ = Describe("IsDirty", func() {
	It("reports dirty for non-empty porcelain output", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:status --porcelain": {Stdout: " M lib/src/lexer.c\n?? notes.txt\n"},
		}}
		dirty, err := gitx.IsDirty(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeTrue())
	})

	It("reports clean for empty output", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:status --porcelain": {Stdout: "\n"},
		}}
		dirty, err := gitx.IsDirty(context.Background(), mock, "/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
	})
})

var _ = Describe("TagExists", func() {
	It("returns true when rev-parse verifies the tag", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/up:rev-parse -q --verify refs/tags/v0.26.6": {Stdout: "abc123\n"},
		}}
		ok, err := gitx.TagExists(context.Background(), mock, "/up", "v0.26.6")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
	})

	It("returns false on nonzero exit", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/up:rev-parse -q --verify refs/tags/v9.9.9": {ExitCode: 1},
		}}
		ok, err := gitx.TagExists(context.Background(), mock, "/up", "v9.9.9")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("CurrentRef", func() {
	It("returns the symbolic branch name", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/up:rev-parse --abbrev-ref HEAD": {Stdout: "main\n"},
		}}
		ref, err := gitx.CurrentRef(context.Background(), mock, "/up")
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal("main"))
	})

	It("falls back to the commit id when detached", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/up:rev-parse --abbrev-ref HEAD": {Stdout: "HEAD\n"},
			"/up:rev-parse HEAD":              {Stdout: "deadbeefcafe\n"},
		}}
		ref, err := gitx.CurrentRef(context.Background(), mock, "/up")
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal("deadbeefcafe"))
	})
})

var _ = Describe("ChangedPaths", func() {
	It("splits status lines", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:status --short -- vendor/tree-sitter": {Stdout: " M vendor/tree-sitter/src/lexer.c\nA  vendor/tree-sitter/.sync-meta.txt\n"},
		}}
		paths := gitx.ChangedPaths(context.Background(), mock, "/repo", "vendor/tree-sitter")
		Expect(paths).To(HaveLen(2))
		Expect(paths[0]).To(ContainSubstring("lexer.c"))
	})

	It("returns nil when nothing changed", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:status --short -- vendor/tree-sitter": {Stdout: ""},
		}}
		Expect(gitx.ChangedPaths(context.Background(), mock, "/repo", "vendor/tree-sitter")).To(BeNil())
	})

	It("tolerates failures", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			"/repo:status --short -- vendor/tree-sitter": {ExitCode: 128, Stderr: "fatal: not a git repository"},
		}}
		Expect(gitx.ChangedPaths(context.Background(), mock, "/repo", "vendor/tree-sitter")).To(BeNil())
	})
})
