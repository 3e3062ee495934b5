package listing

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Legacy LIST output has no standard shape. The decoder samples the lines,
// scores the known dialects, and parses the whole listing with the winner.
// Lines the winning dialect cannot parse are skipped, order is preserved.

type legacyFormat int

const (
	formatNames legacyFormat = iota // bare names, NLST style
	formatUnix                      // ls -l
	formatDOS                       // MS-DOS dir
	formatEPLF                      // Easily Parsed LIST Format
)

var (
	unixPermsRegex = regexp.MustCompile(`^[-dlbcps][rwxsStT-]{9}`)
	dosDateRegex   = regexp.MustCompile(`^\d{2}-\d{2}-\d{2,4}$`)
	dosTimeRegex   = regexp.MustCompile(`^\d{2}:\d{2}(AM|PM)?$`)
)

// DecodeLegacy decodes unstructured LIST output, auto-detecting the
// dialect before parsing. It never fails on unparseable lines; a listing
// in no recognizable dialect decodes to bare-name entries of unknown kind.
func DecodeLegacy(r io.Reader) ([]FileEntry, error) {
	var lines []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	format := detectFormat(lines)

	var entries []FileEntry
	for _, line := range lines {
		if entry, ok := parseLegacyLine(line, format); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// detectFormat scores each dialect over the sampled lines and returns the
// best match. Bare names win only when nothing else matches at all.
func detectFormat(lines []string) legacyFormat {
	var unix, dos, eplf int

	sample := lines
	if len(sample) > 100 {
		sample = sample[:100]
	}
	for _, line := range sample {
		switch {
		case strings.HasPrefix(line, "+"):
			eplf++
		case unixPermsRegex.MatchString(line):
			unix++
		case looksLikeDOS(line):
			dos++
		}
	}

	best := formatNames
	bestScore := 0
	for _, c := range []struct {
		format legacyFormat
		score  int
	}{
		{formatUnix, unix},
		{formatDOS, dos},
		{formatEPLF, eplf},
	} {
		if c.score > bestScore {
			best, bestScore = c.format, c.score
		}
	}
	return best
}

func looksLikeDOS(line string) bool {
	fields := strings.Fields(line)
	return len(fields) >= 4 && dosDateRegex.MatchString(fields[0]) && dosTimeRegex.MatchString(fields[1])
}

func parseLegacyLine(line string, format legacyFormat) (FileEntry, bool) {
	switch format {
	case formatUnix:
		return parseUnixLine(line)
	case formatDOS:
		return parseDOSLine(line)
	case formatEPLF:
		return parseEPLFLine(line)
	default:
		return FileEntry{Name: line, Kind: KindUnknown, Size: -1}, true
	}
}

// parseUnixLine handles ls -l output:
//
//	perms links owner group size month day time-or-year name
//
// and the 8-field variant without a group column. The "total N" header is
// skipped.
func parseUnixLine(line string) (FileEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 8 || !unixPermsRegex.MatchString(fields[0]) {
		return FileEntry{}, false
	}

	entry := FileEntry{Size: -1}
	switch fields[0][0] {
	case 'd':
		entry.Kind = KindDir
	case 'l':
		entry.Kind = KindLink
	default:
		entry.Kind = KindFile
	}

	// Locate the size column: field 4 in the 9-field layout, field 3
	// when the group column is missing.
	sizeIdx := -1
	if len(fields) >= 9 {
		if _, err := strconv.ParseInt(fields[4], 10, 64); err == nil {
			sizeIdx = 4
		}
	}
	if sizeIdx == -1 {
		if _, err := strconv.ParseInt(fields[3], 10, 64); err == nil {
			sizeIdx = 3
		} else {
			return FileEntry{}, false
		}
	}

	size, _ := strconv.ParseInt(fields[sizeIdx], 10, 64)
	entry.Size = size
	if entry.Kind == KindDir {
		entry.Size = -1
	}

	if t, ok := parseUnixTime(fields[sizeIdx+1], fields[sizeIdx+2], fields[sizeIdx+3]); ok {
		entry.Modified = t
	}

	name := strings.Join(fields[sizeIdx+4:], " ")
	if name == "" {
		return FileEntry{}, false
	}
	if entry.Kind == KindLink {
		if target, after, ok := cutArrow(name); ok {
			entry.Name = target
			entry.Target = after
			return entry, true
		}
	}
	entry.Name = name
	return entry, true
}

func cutArrow(name string) (string, string, bool) {
	before, after, ok := strings.Cut(name, " -> ")
	return before, after, ok
}

var unixMonths = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// parseUnixTime handles both "month day HH:MM" (recent files, current
// year assumed) and "month day year" forms.
func parseUnixTime(monthField, dayField, lastField string) (time.Time, bool) {
	month, ok := unixMonths[strings.ToLower(monthField)]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayField)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}

	if strings.Contains(lastField, ":") {
		hhmm, _, _ := strings.Cut(lastField, ":")
		hour, err1 := strconv.Atoi(hhmm)
		minute, err2 := strconv.Atoi(lastField[len(hhmm)+1:])
		if err1 != nil || err2 != nil {
			return time.Time{}, false
		}
		year := time.Now().UTC().Year()
		return time.Date(year, month, day, hour, minute, 0, 0, time.UTC), true
	}

	year, err := strconv.Atoi(lastField)
	if err != nil || year < 1970 {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
}

// parseDOSLine handles MS-DOS dir output:
//
//	MM-DD-YY HH:MMAM <DIR>|size name
func parseDOSLine(line string) (FileEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 || !dosDateRegex.MatchString(fields[0]) || !dosTimeRegex.MatchString(fields[1]) {
		return FileEntry{}, false
	}

	entry := FileEntry{Size: -1}
	if fields[2] == "<DIR>" {
		entry.Kind = KindDir
	} else {
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return FileEntry{}, false
		}
		entry.Kind = KindFile
		entry.Size = size
	}

	if t, ok := parseDOSTime(fields[0], fields[1]); ok {
		entry.Modified = t
	}

	entry.Name = strings.Join(fields[3:], " ")
	return entry, true
}

func parseDOSTime(dateField, timeField string) (time.Time, bool) {
	for _, layout := range []string{"01-02-06 03:04PM", "01-02-2006 03:04PM", "01-02-06 15:04", "01-02-2006 15:04"} {
		if t, err := time.ParseInLocation(layout, dateField+" "+timeField, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseEPLFLine handles EPLF output: "+fact,fact,...\tname". The facts of
// interest are "/" (directory), "r" (retrievable file), sN (size) and
// mN (mtime, Unix seconds).
func parseEPLFLine(line string) (FileEntry, bool) {
	if !strings.HasPrefix(line, "+") {
		return FileEntry{}, false
	}
	facts, name, ok := strings.Cut(line[1:], "\t")
	if !ok {
		// Some servers separate with a space after the trailing comma.
		facts, name, ok = strings.Cut(line[1:], " ")
		if !ok {
			return FileEntry{}, false
		}
	}
	if name == "" {
		return FileEntry{}, false
	}

	entry := FileEntry{Name: name, Kind: KindUnknown, Size: -1}
	for _, fact := range strings.Split(facts, ",") {
		switch {
		case fact == "/":
			entry.Kind = KindDir
		case fact == "r":
			entry.Kind = KindFile
		case strings.HasPrefix(fact, "s"):
			if size, err := strconv.ParseInt(fact[1:], 10, 64); err == nil {
				entry.Size = size
			}
		case strings.HasPrefix(fact, "m"):
			if sec, err := strconv.ParseInt(fact[1:], 10, 64); err == nil {
				entry.Modified = time.Unix(sec, 0).UTC()
			}
		}
	}
	return entry, true
}
