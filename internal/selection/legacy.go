package selection

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/arazimproject/dibit/internal/domain"
)

// Keys of the storage layout used before the single selection document.
const (
	legacySemesterKey  = "Semester"
	legacyCoursesKey   = "Courses"
	legacyGroupsKey    = "Groups"
	legacyColorsKey    = "Colors"
	legacySchoolKey    = "School (Dib It Serialize)"
	legacyStudyPlanKey = "Study Plan (Dib It Serialize)"
	legacyCachePrefix  = "Cached Courses for"
	legacySerializeTag = "Dib It Serialize"
)

// IsLegacyKey reports whether a storage key belongs to the old layout and
// should be removed once migrated.
func IsLegacyKey(key string) bool {
	return strings.HasPrefix(key, legacyCoursesKey) ||
		strings.HasPrefix(key, legacyGroupsKey) ||
		strings.HasPrefix(key, legacyColorsKey) ||
		strings.HasPrefix(key, legacyCachePrefix) ||
		strings.Contains(key, legacySerializeTag) ||
		key == legacySemesterKey
}

// MigrateLegacy converts entries of the old per-key layout into a
// selection document. Unsuffixed Courses/Groups/Colors keys belong to the
// stored Semester. ok is false when there is nothing to migrate.
func MigrateLegacy(entries map[string]json.RawMessage) (d domain.DibIt, ok bool, err error) {
	data := make(map[string]json.RawMessage, len(entries))
	hasCourses := false
	for k, v := range entries {
		if strings.HasPrefix(k, legacyCachePrefix) || !IsLegacyKey(k) {
			continue
		}
		if strings.HasPrefix(k, legacyCoursesKey) {
			hasCourses = true
		}
		data[k] = v
	}
	if !hasCourses {
		return domain.DibIt{}, false, nil
	}

	var semester string
	if raw, found := data[legacySemesterKey]; found {
		if err := json.Unmarshal(raw, &semester); err != nil {
			return domain.DibIt{}, false, fmt.Errorf("decode legacy semester: %w", err)
		}
		d.Semester = semester
		delete(data, legacySemesterKey)
	}
	for _, base := range []string{legacyCoursesKey, legacyGroupsKey, legacyColorsKey} {
		if raw, found := data[base]; found {
			data[base+" "+semester] = raw
			delete(data, base)
		}
	}
	for key, dst := range map[string]*string{legacySchoolKey: &d.School, legacyStudyPlanKey: &d.StudyPlan} {
		raw, found := data[key]
		if !found {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			slog.Warn("dropping undecodable legacy value", "key", key, "error", err)
		}
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		sem, found := strings.CutPrefix(key, legacyCoursesKey+" ")
		if !found {
			continue
		}

		var ids []string
		if err := json.Unmarshal(data[key], &ids); err != nil {
			return domain.DibIt{}, false, fmt.Errorf("decode legacy %q: %w", key, err)
		}
		groups := map[string][]string{}
		if raw, found := data[legacyGroupsKey+" "+sem]; found {
			if err := json.Unmarshal(raw, &groups); err != nil {
				return domain.DibIt{}, false, fmt.Errorf("decode legacy groups %q: %w", sem, err)
			}
		}
		colors := map[string]string{}
		if raw, found := data[legacyColorsKey+" "+sem]; found {
			if err := json.Unmarshal(raw, &colors); err != nil {
				return domain.DibIt{}, false, fmt.Errorf("decode legacy colors %q: %w", sem, err)
			}
		}

		if d.Courses == nil {
			d.Courses = make(map[string][]domain.DibItCourse)
		}
		for _, id := range ids {
			d.Courses[sem] = append(d.Courses[sem], domain.DibItCourse{
				ID:     id,
				Groups: groups[id],
				Color:  colors[id],
			})
		}
	}

	return d.Normalize(), true, nil
}
