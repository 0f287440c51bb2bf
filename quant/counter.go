package quant

// Counter runs one bundle at a time through alignment selection, gene
// selection, deduplication and channel classification. A Counter belongs to
// a single partition and is not safe for concurrent use.
type Counter struct {
	config *Config
	uniq   *UniqueSet
	stats  RefStats
}

// Process returns the gene the bundle is credited to and the channels it
// counts into. gene is empty when disambiguation failed; channels may be
// empty even for a non-empty gene, in which case nothing is counted.
func (c *Counter) Process(b Bundle) (gene string, channels ChannelSet) {
	if len(b.Candidates) == 0 {
		return "", nil
	}
	var selected Candidate
	if len(b.Candidates) == 1 {
		c.stats.Count(EventAlnUnique)
		selected = b.Candidates[0]
	} else {
		c.stats.Count(EventAlnMulti)
		var ok bool
		if selected, ok = c.config.alignments.Select(b.Candidates); !ok {
			c.stats.Count(EventAlnSelectionFailed)
			return "", nil
		}
		c.stats.Count(EventAlnSelected)
	}
	c.stats.Count(EventAlnCountable)
	c.stats.Count(eventStrandPrefix + string(selected.Strand))

	var codes []FeatureCode
	if len(selected.GeneNames) == 1 {
		c.stats.Count(EventGeneUnique)
		gene, codes, _ = singleGene(selected)
	} else {
		c.stats.Count(EventGeneMulti)
		var ok bool
		if gene, codes, ok = c.config.genes.Select(selected); !ok {
			c.stats.Count(EventGeneSelectionFailed)
			return "", nil
		}
		c.stats.Count(EventGeneSelected)
	}

	c.stats.Count(EventAlnCounted)
	if len(codes) > 0 && codes[0].Antisense() {
		c.stats.Count(EventAlnAntisense)
	} else {
		c.stats.Count(EventAlnSense)
	}

	uniq := c.uniq.Observe(b.Cell, b.UMI)
	channels = c.config.classifier.Classify(codes, uniq)
	for _, ch := range channels {
		c.stats.Count(eventChannelPrefix + ch)
	}
	if len(channels) == 0 {
		c.stats.Count(EventChannelNone)
	}
	return gene, channels
}
