package services

// valueLetterAxes maps each selectable value letter from the step-1 UI
// universe to its axis index and internal type letter. The F/T and P/J
// pairs are deliberately remapped (F→P people-oriented, T→R
// results-oriented, P→F flexible, J→O disciplined); the table is
// behavior-preserving and must not be "fixed" to match Myers-Briggs
// intuition.
var valueLetterAxes = map[string]struct {
	axis   int
	letter string
}{
	"E": {0, "E"}, "I": {0, "I"},
	"N": {1, "N"}, "S": {1, "S"},
	"F": {2, "P"}, "T": {2, "R"},
	"P": {3, "F"}, "J": {3, "O"},
}

// FilterSelection is the ordered wizard state. Derived types are always
// recomputed from ValueLetters, never mutated directly.
type FilterSelection struct {
	ValueLetters []string `json:"value_letters"`
	Industries   []string `json:"industries"`
	JobTypes     []string `json:"job_types"`
}

// MatchingStore provides the company reads behind funnel steps 2 and 3.
type MatchingStore interface {
	ListCompaniesByTypes(types []string) ([]*Company, error)
	ListCompanyJobTypes(companyID string) ([]string, error)
}

type MatchingService struct {
	store MatchingStore
}

func NewMatchingService(store MatchingStore) *MatchingService {
	return &MatchingService{store: store}
}

// DeriveTypes expands the selected value letters into the admitted type
// codes. Per opposing pair: exactly one letter selected pins that axis to
// its internal letter; zero selected leaves the axis free; both selected
// widens back to free. The Cartesian product over the four axes yields 1
// to 16 codes. Selecting no letters at all is rejected.
func DeriveTypes(valueLetters []string) ([]string, error) {
	if len(valueLetters) == 0 {
		return nil, NewInvalidError("select at least one value")
	}
	var picked [4]map[string]bool
	for _, l := range valueLetters {
		m, ok := valueLetterAxes[l]
		if !ok {
			return nil, NewInvalidError("unknown value letter: " + l)
		}
		if picked[m.axis] == nil {
			picked[m.axis] = map[string]bool{}
		}
		picked[m.axis][m.letter] = true
	}

	var allowed [4][]string
	for i := range allowed {
		if len(picked[i]) == 1 {
			for l := range picked[i] {
				allowed[i] = []string{l}
			}
			continue
		}
		// zero or both of the pair: axis stays free
		allowed[i] = axisLetters[i][:]
	}

	out := make([]string, 0, 16)
	for _, a := range allowed[0] {
		for _, b := range allowed[1] {
			for _, c := range allowed[2] {
				for _, d := range allowed[3] {
					out = append(out, a+b+c+d)
				}
			}
		}
	}
	return out, nil
}

// FilterByIndustry keeps companies sharing at least one industry with the
// monitor's declared interests. Idempotent; zero survivors is a valid
// outcome, not an error.
func FilterByIndustry(companies []*Company, industries []string) []*Company {
	want := map[string]bool{}
	for _, ind := range industries {
		want[ind] = true
	}
	out := make([]*Company, 0, len(companies))
	for _, c := range companies {
		for _, ind := range c.Industries {
			if want[ind] {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Candidates runs the full three-step funnel: value letters → derived
// types → industry intersection → job-type membership. Each step is an
// independent read; the final list keeps the underlying query order.
func (s *MatchingService) Candidates(sel FilterSelection) ([]*Company, error) {
	types, err := DeriveTypes(sel.ValueLetters)
	if err != nil {
		return nil, err
	}
	companies, err := s.store.ListCompaniesByTypes(types)
	if err != nil {
		return nil, err
	}
	companies = FilterByIndustry(companies, sel.Industries)

	wantJobs := map[string]bool{}
	for _, jt := range sel.JobTypes {
		wantJobs[jt] = true
	}
	out := make([]*Company, 0, len(companies))
	for _, c := range companies {
		jobTypes, err := s.store.ListCompanyJobTypes(c.ID)
		if err != nil {
			return nil, err
		}
		for _, jt := range jobTypes {
			if wantJobs[jt] {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}
