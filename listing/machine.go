package listing

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DecodeMachine decodes RFC 3659 machine-readable listing output.
// Each line is "fact=value;fact=value; name"; the name follows the first
// space. Unknown facts are kept in FileEntry.Facts.
//
// In lenient mode (strict=false) malformed records are skipped; a single
// bad line never fails the whole listing. Strict mode returns an error for
// the first malformed record.
func DecodeMachine(r io.Reader, strict bool) ([]FileEntry, error) {
	var entries []FileEntry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		entry, err := parseMachineLine(line)
		if err != nil {
			if strict {
				return nil, err
			}
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseMachineLine(line string) (FileEntry, error) {
	sep := strings.Index(line, " ")
	if sep == -1 {
		return FileEntry{}, fmt.Errorf("listing: no name separator in record %q", line)
	}
	name := line[sep+1:]
	if name == "" {
		return FileEntry{}, fmt.Errorf("listing: empty name in record %q", line)
	}

	entry := FileEntry{Name: name, Size: -1}
	extra := make(map[string]string)

	for _, pair := range strings.Split(line[:sep], ";") {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return FileEntry{}, fmt.Errorf("listing: malformed fact %q in record %q", pair, line)
		}
		key = strings.ToLower(key)

		switch key {
		case "type":
			entry.Kind = kindFromFactType(value)
		case "size", "sizd":
			size, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return FileEntry{}, fmt.Errorf("listing: bad size fact %q in record %q", value, line)
			}
			entry.Size = size
		case "modify":
			if t, ok := parseTimeVal(value); ok {
				entry.Modified = t
			}
		default:
			extra[key] = value
		}
	}

	if len(extra) > 0 {
		entry.Facts = extra
	}
	return entry, nil
}

// kindFromFactType maps the RFC 3659 type fact to a Kind. The cdir/pdir
// pseudo-entries are directories; OS.unix extensions mark symlinks.
func kindFromFactType(value string) Kind {
	switch v := strings.ToLower(value); {
	case v == "file":
		return KindFile
	case v == "dir" || v == "cdir" || v == "pdir":
		return KindDir
	case strings.HasPrefix(v, "os.unix=slink") || strings.HasPrefix(v, "os.unix=symlink"):
		return KindLink
	default:
		return KindUnknown
	}
}

// parseTimeVal parses the modify fact: YYYYMMDDHHMMSS with an optional
// fractional second part, always UTC.
func parseTimeVal(value string) (time.Time, bool) {
	if dot := strings.IndexByte(value, '.'); dot != -1 {
		value = value[:dot]
	}
	t, err := time.ParseInLocation("20060102150405", value, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
