package quant

import (
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Opts configures counting. It is validated once by Compile, before any
// bundle is processed.
type Opts struct {
	// Channels lists every channel the count store must hold.
	Channels []string
	// AlignmentPriorities is consulted by the "priority" alignment strategy.
	AlignmentPriorities PriorityTable
	// GenePriorities is consulted by the "priority" gene strategy.
	GenePriorities PriorityTable
	ExonicTags     []FeatureCode
	IntronicTags   []FeatureCode
	// MainContributors lists the channels that also count into MainChannel.
	MainContributors []string
	// ExonIntron is one of "exon_wins", "intron_wins", "count_both".
	ExonIntron string
	// AlignmentSelection is one of "priority", "take_first".
	AlignmentSelection string
	// GeneSelection is one of "priority", "chrom".
	GeneSelection string
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	Channels:            []string{MainChannel, ExonicCounts, ExonicReads, IntronicCounts, IntronicReads},
	AlignmentPriorities: DefaultPriorities,
	GenePriorities:      DefaultPriorities,
	ExonicTags: []FeatureCode{
		CodingExon, UTRExon, CodingUTRExon, NoncodingExon,
		CodingExonAntisense, UTRExonAntisense, CodingUTRExonAntisense, NoncodingExonAntisense,
	},
	IntronicTags:       []FeatureCode{Intron, IntronAntisense},
	MainContributors:   []string{ExonicCounts, IntronicCounts},
	ExonIntron:         "exon_wins",
	AlignmentSelection: "priority",
	GeneSelection:      "priority",
}

// Config is a validated, immutable Opts. It is safe for concurrent use and
// creates one Counter per partition.
type Config struct {
	channels   ChannelSet
	alignments AlignmentSelector
	genes      GeneSelector
	classifier *Classifier
}

// Compile validates the options. Unknown strategy or policy names, malformed
// priority tables and inconsistent tag sets are reported as errors.Invalid.
func (o Opts) Compile() (*Config, error) {
	if len(o.Channels) == 0 {
		return nil, errors.E(errors.Invalid, "no channels configured")
	}
	channels := ChannelSet{}
	for _, c := range o.Channels {
		if c == "" {
			return nil, errors.E(errors.Invalid, "empty channel name")
		}
		if channels.Has(c) {
			return nil, errors.E(errors.Invalid, "duplicate channel", c)
		}
		channels = channels.Add(c)
	}
	if o.AlignmentPriorities == nil || o.GenePriorities == nil {
		return nil, errors.E(errors.Invalid, "missing priority table")
	}
	if err := o.AlignmentPriorities.Validate(); err != nil {
		return nil, errors.E(err, "alignment priorities")
	}
	if err := o.GenePriorities.Validate(); err != nil {
		return nil, errors.E(err, "gene priorities")
	}
	exonic := NewFeatureSet(o.ExonicTags...)
	intronic := NewFeatureSet(o.IntronicTags...)
	for f := range exonic {
		if intronic.Has(f) {
			return nil, errors.E(errors.Invalid, "feature code", string(f), "is both exonic and intronic")
		}
	}
	policy, err := ParseConflictPolicy(o.ExonIntron)
	if err != nil {
		return nil, err
	}
	as, err := ParseAlignmentStrategy(o.AlignmentSelection)
	if err != nil {
		return nil, err
	}
	gs, err := ParseGeneStrategy(o.GeneSelection)
	if err != nil {
		return nil, err
	}
	return &Config{
		channels:   channels,
		alignments: NewAlignmentSelector(as, o.AlignmentPriorities),
		genes:      NewGeneSelector(gs, o.GenePriorities),
		classifier: &Classifier{
			Exonic:   exonic,
			Intronic: intronic,
			Policy:   policy,
			Main:     NewChannelSet(o.MainContributors...),
		},
	}, nil
}

// Channels returns the configured channels, sorted.
func (c *Config) Channels() []string { return c.channels }

// NewCounter creates a counter that records first observations in uniq and
// events in stats. Both are owned by the caller; counters of the same
// partition share the partition's UniqueSet.
func (c *Config) NewCounter(uniq *UniqueSet, stats RefStats) *Counter {
	return &Counter{config: c, uniq: uniq, stats: stats}
}

// BuiltinFlavors returns the named configurations derived from base:
// "default" is base itself, "first" takes the first alignment of each
// bundle, and "chrom" counts alignments per chromosome.
func BuiltinFlavors(base Opts) map[string]Opts {
	first := base
	first.AlignmentSelection = "take_first"
	chrom := base
	chrom.GeneSelection = "chrom"
	return map[string]Opts{
		"default": base,
		"first":   first,
		"chrom":   chrom,
	}
}

// Flavors assigns a Config to every reference name.
type Flavors struct {
	byRef    map[string]*Config
	fallback *Config
	channels []string
}

// ParseFlavors parses a flavor assignment such as
// "first@miRNA,chrom@rRNA,default": "name@ref" assigns flavor name to
// reference ref, and a bare name sets the flavor of all other references
// ("default" if absent). Flavor names are looked up in flavors.
func ParseFlavors(spec string, flavors map[string]Opts) (*Flavors, error) {
	compiled := map[string]*Config{}
	lookup := func(name string) (*Config, error) {
		if c, ok := compiled[name]; ok {
			return c, nil
		}
		o, ok := flavors[name]
		if !ok {
			return nil, errors.E(errors.Invalid, "unknown flavor", name)
		}
		c, err := o.Compile()
		if err != nil {
			return nil, errors.E(err, "flavor", name)
		}
		compiled[name] = c
		return c, nil
	}
	f := &Flavors{byRef: map[string]*Config{}}
	fallback := "default"
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if i := strings.IndexByte(item, '@'); i >= 0 {
			name, ref := item[:i], item[i+1:]
			if name == "" || ref == "" {
				return nil, errors.E(errors.Invalid, "malformed flavor assignment", item)
			}
			c, err := lookup(name)
			if err != nil {
				return nil, err
			}
			f.byRef[ref] = c
			log.Debug.Printf("reference %s: flavor %s", ref, name)
		} else {
			fallback = item
		}
	}
	var err error
	if f.fallback, err = lookup(fallback); err != nil {
		return nil, err
	}
	log.Debug.Printf("default flavor: %s", fallback)

	union := ChannelSet{}
	for _, c := range compiled {
		for _, ch := range c.channels {
			union = union.Add(ch)
		}
	}
	f.channels = union
	return f, nil
}

// SingleFlavor returns Flavors that use c for every reference.
func SingleFlavor(c *Config) *Flavors {
	return &Flavors{byRef: map[string]*Config{}, fallback: c, channels: c.channels}
}

// For returns the Config for reference ref.
func (f *Flavors) For(ref string) *Config {
	if c, ok := f.byRef[ref]; ok {
		return c
	}
	return f.fallback
}

// Channels returns the sorted union of the channels of all flavors.
func (f *Flavors) Channels() []string { return f.channels }

// Refs returns the references with an explicit flavor, sorted.
func (f *Flavors) Refs() []string {
	refs := make([]string, 0, len(f.byRef))
	for ref := range f.byRef {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
