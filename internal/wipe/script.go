package wipe

import (
	"fmt"
	"strings"

	"github.com/OnlyParams/android-secure-wipe/internal/storage"
)

// passScript builds the POSIX shell loop pushed to the device for one pass.
// Each iteration re-reads free space, stops below the floor, writes one
// bounded increment from /dev/urandom, and echoes a tagged protocol line
// (PROGRESS / LOWSPACE / WRITE_ERROR / PASS_DONE) that the progress stream
// classifies on the host. The free-space field is located as the column
// before Use% so wrapped vendor df layouts still parse.
func passScript(tempDir, mount string, pass int, plan PassPlan, incrementBytes int64) string {
	targetMB := ceilMiB(plan.TargetBytes)
	incMB := incrementBytes / storage.MiB
	if incMB < 1 {
		incMB = 1
	}
	floorKB := plan.FloorBytes / storage.KiB
	passDir := passDir(tempDir, pass)

	lines := []string{
		fmt.Sprintf(`d=%s`, shellQuote(passDir)),
		fmt.Sprintf(`mkdir -p "$d" || { echo "WRITE_ERROR pass=%d chunk=mkdir"; exit 1; }`, pass),
		`w=0`,
		`i=0`,
		fmt.Sprintf(`while [ "$w" -lt %d ]; do`, targetMB),
		fmt.Sprintf(`  set -- $(df -k %s 2>/dev/null | tail -n 1)`, shellQuote(mount)),
		`  a=; p=`,
		`  for f in "$@"; do case "$f" in *%) a=$p ;; esac; p=$f; done`,
		`  [ -n "$a" ] || a=$4`,
		`  case "$a" in ''|*[!0-9]*) a=0 ;; esac`,
		fmt.Sprintf(`  if [ "$a" -lt %d ]; then echo "LOWSPACE pass=%d avail_kb=$a"; break; fi`, floorKB, pass),
		fmt.Sprintf(`  c=%d`, incMB),
		fmt.Sprintf(`  r=$((%d - w))`, targetMB),
		`  if [ "$r" -lt "$c" ]; then c=$r; fi`,
		`  if ! dd if=/dev/urandom of="$d/chunk_$i" bs=1048576 count="$c" >/dev/null 2>&1; then`,
		fmt.Sprintf(`    echo "WRITE_ERROR pass=%d chunk=$i"`, pass),
		`    exit 1`,
		`  fi`,
		`  w=$((w + c))`,
		`  i=$((i + 1))`,
		fmt.Sprintf(`  echo "PROGRESS pass=%d written_mb=$w target_mb=%d"`, pass, targetMB),
		`done`,
		fmt.Sprintf(`echo "PASS_DONE pass=%d written_mb=$w"`, pass),
	}
	return strings.Join(lines, "\n")
}

// passDir is the per-pass subdirectory of the session temp directory.
func passDir(tempDir string, pass int) string {
	return fmt.Sprintf("%s/pass%d", tempDir, pass)
}

func ceilMiB(n int64) int64 {
	mb := (n + storage.MiB - 1) / storage.MiB
	if mb < 1 {
		mb = 1
	}
	return mb
}

// shellQuote single-quotes a path for the device shell. Paths are built
// from the mount point and a UUID, so embedded quotes never occur, but the
// quoting keeps spaces and globs inert.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
