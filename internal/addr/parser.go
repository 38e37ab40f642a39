package addr

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/taxroll-cli/internal/model"
)

// Resolver is the external geocoding dependency of the parser chain.
// A nil normalized address with a nil error means the service had no
// match; errors are reserved for call failures.
type Resolver interface {
	Resolve(ctx context.Context, address string) (*model.NormalizedAddress, error)
}

// Strategy is one parsing attempt in the fallback chain. A nil address
// means the strategy did not match; the chain moves on. Errors are
// logged and treated as a non-match.
type Strategy interface {
	Name() string
	Source() model.Source
	Parse(ctx context.Context, address string) (*model.NormalizedAddress, error)
}

// Parser tries strategies in a fixed order, returning the first fully
// populated result. Regex strategies come first because they are cheap
// and offline; geocoding is slow and rate-limited; the manual comma
// heuristic is the last resort.
type Parser struct {
	strategies []Strategy
}

// NewParser builds the standard chain. A nil resolver omits the geocode
// strategy, leaving the deterministic strategies only.
func NewParser(resolver Resolver) *Parser {
	strategies := []Strategy{
		&regexStrategy{name: "regex-standard", re: reStandard},
		&regexStrategy{name: "regex-county", re: reCounty, stateIdx: 4, zipIdx: 5},
		&stateNameStrategy{},
	}
	if resolver != nil {
		strategies = append(strategies, &geocodeStrategy{resolver: resolver})
	}
	strategies = append(strategies, manualStrategy{})
	return &Parser{strategies: strategies}
}

// Parse runs the chain over a cleaned address string. ok is false when
// every strategy failed; the caller preserves the raw input unchanged.
func (p *Parser) Parse(ctx context.Context, address string) (*model.NormalizedAddress, model.Source, bool) {
	for _, s := range p.strategies {
		result, err := s.Parse(ctx, address)
		if err != nil {
			zap.L().Debug("addr: strategy failed, trying next",
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Complete() {
			return result, s.Source(), true
		}
	}
	return nil, "", false
}

var (
	// "123 Main St, Springfield, NY 10001"
	reStandard = regexp.MustCompile(`^([^,]+?),\s*([^,]+?),\s*([A-Za-z]{2})\s+(\d{5}(?:-\d{4})?)$`)

	// "123 Main St, Springfield, Hampden County, MA 01101"
	reCounty = regexp.MustCompile(`^([^,]+?),\s*([^,]+?),\s*([A-Za-z .]+?[Cc]ounty),\s*([A-Za-z]{2})\s+(\d{5}(?:-\d{4})?)$`)

	// "123 Main St, Springfield, New York 10001"
	reStateName = regexp.MustCompile(`^([^,]+?),\s*([^,]+?),\s*([A-Za-z. ]+?)\s+(\d{5}(?:-\d{4})?)$`)

	// state + zip inside a comma segment, e.g. "NY 11201-1234"
	reStateZip = regexp.MustCompile(`\b([A-Za-z]{2})\s+(\d{5}(?:-\d{4})?)\b`)
)

type regexStrategy struct {
	name     string
	re       *regexp.Regexp
	stateIdx int // submatch index of the state group; 0 means default layout
	zipIdx   int
}

func (s *regexStrategy) Name() string         { return s.name }
func (s *regexStrategy) Source() model.Source { return model.SourceRegex }

func (s *regexStrategy) Parse(_ context.Context, address string) (*model.NormalizedAddress, error) {
	m := s.re.FindStringSubmatch(address)
	if m == nil {
		return nil, nil
	}
	stateIdx, zipIdx := s.stateIdx, s.zipIdx
	if stateIdx == 0 {
		stateIdx, zipIdx = 3, 4
	}
	state := strings.ToUpper(strings.TrimSpace(m[stateIdx]))
	if !IsStateCode(state) {
		return nil, nil
	}
	return &model.NormalizedAddress{
		Street: strings.TrimSpace(m[1]),
		City:   strings.TrimSpace(m[2]),
		State:  state,
		Zip:    strings.TrimSpace(m[zipIdx]),
	}, nil
}

// stateNameStrategy accepts a spelled-out state name in place of the
// abbreviation and maps it back to its USPS code.
type stateNameStrategy struct{}

func (stateNameStrategy) Name() string         { return "regex-state-name" }
func (stateNameStrategy) Source() model.Source { return model.SourceRegex }

func (stateNameStrategy) Parse(_ context.Context, address string) (*model.NormalizedAddress, error) {
	m := reStateName.FindStringSubmatch(address)
	if m == nil {
		return nil, nil
	}
	state := StateAbbrev(m[3])
	if state == "" {
		return nil, nil
	}
	return &model.NormalizedAddress{
		Street: strings.TrimSpace(m[1]),
		City:   strings.TrimSpace(m[2]),
		State:  state,
		Zip:    strings.TrimSpace(m[4]),
	}, nil
}

type geocodeStrategy struct {
	resolver Resolver
}

func (geocodeStrategy) Name() string           { return "geocode" }
func (geocodeStrategy) Source() model.Source   { return model.SourceGeocode }
func (s *geocodeStrategy) Parse(ctx context.Context, address string) (*model.NormalizedAddress, error) {
	return s.resolver.Resolve(ctx, address)
}

// manualStrategy is the comma-split heuristic of last resort: the final
// segment carries "STATE ZIP", the one before it the city, everything
// leading joins back into the street.
type manualStrategy struct{}

func (manualStrategy) Name() string         { return "manual" }
func (manualStrategy) Source() model.Source { return model.SourceManual }

func (manualStrategy) Parse(_ context.Context, address string) (*model.NormalizedAddress, error) {
	parts := strings.Split(address, ",")
	if len(parts) < 3 {
		return nil, nil
	}

	last := strings.TrimSpace(parts[len(parts)-1])
	var state, zip string
	if m := reStateZip.FindStringSubmatch(last); m != nil {
		state = strings.ToUpper(m[1])
		zip = m[2]
	} else {
		fields := strings.Fields(last)
		if len(fields) > 0 {
			state = strings.ToUpper(fields[0])
		}
		if len(fields) > 1 {
			zip = fields[len(fields)-1]
		}
	}

	city := strings.TrimSpace(parts[len(parts)-2])
	street := strings.TrimSpace(strings.Join(parts[:len(parts)-2], ","))

	return &model.NormalizedAddress{
		Street: street,
		City:   city,
		State:  state,
		Zip:    zip,
	}, nil
}
