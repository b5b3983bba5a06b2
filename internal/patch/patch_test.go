package patch_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/forksync/internal/model"
	"github.com/skaphos/forksync/internal/patch"
)

const buildScriptFixture = `use std::env;
use std::path::PathBuf;

fn main() {
    let target = env::var("TARGET").unwrap();
    let mut config = cc::Build::new();

    if target.starts_with("wasm32-unknown") {
        configure_wasm_build(&mut config);
    }

    if target.contains("wasm") {
        config.define("TS_WASM", None);
    }

    config.compile("ts");
}
`

const libFixture = `mod ffi;

use tree_sitter_language::LanguageFn;

pub struct Language(LanguageFn);
`

const clockFixture = `#ifndef TS_CLOCK_H_
#define TS_CLOCK_H_

#include <stdint.h>

#if defined(_WIN32)

#include <windows.h>
typedef uint64_t TSClock;

#else

#include <time.h>
typedef struct timespec TSClock;

#endif

#endif // TS_CLOCK_H_
`

var _ = Describe("BuildScriptSysroot", func() {
	p := patch.BuildScriptSysroot()

	It("rewrites the wasm32 gate to prefer the external sysroot", func() {
		out, status := p.Apply(buildScriptFixture)
		Expect(status).To(Equal(model.PatchApplied))
		Expect(out).To(ContainSubstring(patch.SysrootEnvVar))
		Expect(out).To(ContainSubstring("if !fork_has_sysroot {"))
		Expect(out).To(ContainSubstring("configure_wasm_build(&mut config);"))
		Expect(out).NotTo(ContainSubstring(`if target.starts_with("wasm32-unknown") {
        configure_wasm_build(&mut config);
    }`))
	})

	It("injects the -Wno-format flag inside the wasm block", func() {
		out, status := p.Apply(buildScriptFixture)
		Expect(status).To(Equal(model.PatchApplied))
		Expect(out).To(ContainSubstring(`config.flag_if_supported("-Wno-format");`))
	})

	It("is idempotent on a second application", func() {
		once, status := p.Apply(buildScriptFixture)
		Expect(status).To(Equal(model.PatchApplied))

		twice, status := p.Apply(once)
		Expect(status).To(Equal(model.PatchAlreadyApplied))
		Expect(twice).To(Equal(once))
	})

	It("warns when the gate moved upstream", func() {
		drifted := "fn main() { build_everything(); }\n"
		out, status := p.Apply(drifted)
		Expect(status).To(Equal(model.PatchAnchorMissing))
		Expect(out).To(Equal(drifted))
	})

	It("skips the flag sub-patch when the wasm block is gone", func() {
		noFlagBlock := `use std::env;
use std::path::PathBuf;

fn main() {
    let target = env::var("TARGET").unwrap();
    let mut config = cc::Build::new();

    if target.starts_with("wasm32-unknown") {
        configure_wasm_build(&mut config);
    }
}
`
		out, status := p.Apply(noFlagBlock)
		Expect(status).To(Equal(model.PatchApplied))
		Expect(out).NotTo(ContainSubstring("-Wno-format"))
	})
})

var _ = Describe("PublicReexport", func() {
	p := patch.PublicReexport()

	It("rewrites the private import to a public re-export", func() {
		out, status := p.Apply(libFixture)
		Expect(status).To(Equal(model.PatchApplied))
		Expect(out).To(ContainSubstring("pub use tree_sitter_language::LanguageFn;"))
	})

	It("is idempotent on a second application", func() {
		once, status := p.Apply(libFixture)
		Expect(status).To(Equal(model.PatchApplied))

		twice, status := p.Apply(once)
		Expect(status).To(Equal(model.PatchAlreadyApplied))
		Expect(twice).To(Equal(once))
	})

	It("warns when the import is absent", func() {
		_, status := p.Apply("mod ffi;\n")
		Expect(status).To(Equal(model.PatchAnchorMissing))
	})
})

var _ = Describe("ClockStub", func() {
	p := patch.ClockStub()

	It("inserts the wasm branch immediately before the Windows branch", func() {
		out, status := p.Apply(clockFixture)
		Expect(status).To(Equal(model.PatchApplied))
		Expect(out).To(ContainSubstring("#if defined(__wasm__) && !defined(__EMSCRIPTEN__)"))
		Expect(out).To(ContainSubstring("#elif defined(_WIN32)"))
		Expect(out).To(ContainSubstring("static inline TSClock clock_now(void) {\n  return 0;\n}"))
		// The original Windows branch is demoted to elif, not duplicated.
		Expect(out).NotTo(ContainSubstring("#if defined(_WIN32)\n\n#include <windows.h>"))
	})

	It("is idempotent on a second application", func() {
		once, status := p.Apply(clockFixture)
		Expect(status).To(Equal(model.PatchApplied))

		twice, status := p.Apply(once)
		Expect(status).To(Equal(model.PatchAlreadyApplied))
		Expect(twice).To(Equal(once))
	})

	It("warns when the header format changed", func() {
		_, status := p.Apply("#pragma once\n")
		Expect(status).To(Equal(model.PatchAnchorMissing))
	})

	It("is marked optional because upstream may remove the header", func() {
		Expect(p.OptionalFile).To(BeTrue())
	})
})

var _ = Describe("DefaultSet", func() {
	It("keeps the declared order", func() {
		set := patch.DefaultSet()
		Expect(set).To(HaveLen(3))
		Expect(set[0].Name).To(Equal("build-script-sysroot"))
		Expect(set[1].Name).To(Equal("languagefn-public-reexport"))
		Expect(set[2].Name).To(Equal("clock-wasm-stub"))
	})

	It("has no overlapping anchors", func() {
		Expect(patch.DefaultSet().CheckDisjoint()).To(Succeed())
	})

	It("rejects overlapping patches on the same file", func() {
		set := patch.Set{
			{Name: "a", File: "x.rs", Anchor: "needle in file"},
			{Name: "b", File: "x.rs", Anchor: "needle"},
		}
		Expect(set.CheckDisjoint()).To(MatchError(ContainSubstring("overlap")))
	})

	It("allows identical anchors in different files", func() {
		set := patch.Set{
			{Name: "a", File: "x.rs", Anchor: "needle"},
			{Name: "b", File: "y.rs", Anchor: "needle"},
		}
		Expect(set.CheckDisjoint()).To(Succeed())
	})
})
