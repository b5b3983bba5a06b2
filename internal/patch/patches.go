package patch

import (
	"strings"

	"github.com/skaphos/forksync/internal/model"
)

// SysrootEnvVar is the cargo metadata variable consulted by the patched
// build script for an externally supplied wasm sysroot.
const SysrootEnvVar = "DEP_TS_SYSROOT_PATH"

const wasmGateOld = `if target.starts_with("wasm32-unknown") {
        configure_wasm_build(&mut config);
    }`

const wasmGateNew = `if target.starts_with("wasm32-unknown") {
        let mut fork_has_sysroot = false;

        // Fork patch: prefer the externally supplied sysroot and disable
        // upstream wasm stdlib sources to avoid duplicate symbols
        // (malloc/free/...).
        if let Ok(sysroot) = env::var("` + SysrootEnvVar + `") {
            let wasm_sysroot = PathBuf::from(&sysroot);
            config.include(&wasm_sysroot);
            println!("cargo:rerun-if-changed={}", wasm_sysroot.display());
            fork_has_sysroot = true;
        }

        if !fork_has_sysroot {
            configure_wasm_build(&mut config);
        }
    }`

const wasmFlagAnchor = `if target.contains("wasm") {`

const wasmFlagLine = `config.flag_if_supported("-Wno-format");`

const wasmFlagInsert = wasmFlagAnchor + `
        // Fork patch: suppress format warnings on wasm32 where uint32_t
        // may be unsigned long.
        ` + wasmFlagLine

// BuildScriptSysroot rewrites the wasm32 configure gate in the binding's
// build script so an externally supplied sysroot takes precedence over
// the upstream wasm configuration. A secondary sub-patch, with its own
// idempotency check, injects a -Wno-format flag inside the existing
// "target contains wasm" block.
func BuildScriptSysroot() Patch {
	return Patch{
		Name:   "build-script-sysroot",
		File:   "binding_rust/build.rs",
		Marker: SysrootEnvVar,
		Anchor: wasmGateOld,
		Transform: func(src string) (string, model.PatchStatus) {
			if strings.Contains(src, SysrootEnvVar) {
				return src, model.PatchAlreadyApplied
			}
			if !strings.Contains(src, wasmGateOld) {
				return src, model.PatchAnchorMissing
			}
			patched := strings.Replace(src, wasmGateOld, wasmGateNew, 1)

			if strings.Contains(patched, wasmFlagAnchor) && !strings.Contains(patched, wasmFlagLine) {
				patched = strings.Replace(patched, wasmFlagAnchor, wasmFlagInsert, 1)
			}
			return patched, model.PatchApplied
		},
	}
}

const reexportOld = "use tree_sitter_language::LanguageFn;"

const reexportNew = "pub use tree_sitter_language::LanguageFn;"

// PublicReexport ensures the binding's entry file publicly re-exports
// LanguageFn so downstream crates can import it from the fork directly.
func PublicReexport() Patch {
	return Patch{
		Name:      "languagefn-public-reexport",
		File:      "binding_rust/lib.rs",
		Marker:    reexportNew,
		Anchor:    reexportOld,
		Transform: replaceOnce(reexportNew, reexportOld, reexportNew),
	}
}

const clockStubMarker = "defined(__wasm__) && !defined(__EMSCRIPTEN__)"

const clockStubAnchor = "#if defined(_WIN32)"

const clockStubBlock = `#if defined(__wasm__) && !defined(__EMSCRIPTEN__)

// WASM (non-Emscripten): stub out clock functions
// In WASM mode, we don't have access to clock() or clock_gettime(),
// so we provide stub implementations that disable timeout functionality.
typedef uint64_t TSClock;

static inline TSDuration duration_from_micros(uint64_t micros) {
  (void)micros;
  return 0;
}

static inline uint64_t duration_to_micros(TSDuration self) {
  (void)self;
  return 0;
}

static inline TSClock clock_null(void) {
  return 0;
}

static inline TSClock clock_now(void) {
  return 0;
}

static inline TSClock clock_after(TSClock base, TSDuration duration) {
  (void)base;
  (void)duration;
  return 0;
}

static inline bool clock_is_null(TSClock self) {
  return !self;
}

static inline bool clock_is_gt(TSClock self, TSClock other) {
  (void)self;
  (void)other;
  return false;
}

#elif defined(_WIN32)`

// ClockStub inserts a wasm conditional branch ahead of the Windows one in
// the low-level clock header, stubbing every clock primitive so timeout
// functionality is disabled in that environment. Newer upstreams may drop
// the file entirely, so it is marked optional.
func ClockStub() Patch {
	return Patch{
		Name:         "clock-wasm-stub",
		File:         "src/clock.h",
		OptionalFile: true,
		Marker:       clockStubMarker,
		Anchor:       clockStubAnchor,
		Transform:    replaceOnce(clockStubMarker, clockStubAnchor, clockStubBlock),
	}
}

// DefaultSet returns the fork's patch sequence in its declared order.
func DefaultSet() Set {
	return Set{
		BuildScriptSysroot(),
		PublicReexport(),
		ClockStub(),
	}
}
