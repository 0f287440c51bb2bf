/*Package quant decides, for every sequenced molecule, which alignment it
  represents, which gene that alignment is credited to, and into which count
  channels the molecule is tallied.

  A molecule arrives as a Bundle: a cell barcode, a UMI and one or more
  alternative alignments (Candidates). Counting goes through three stages.

  Alignment disambiguation: if a bundle holds more than one candidate, each
  candidate is given the highest priority among its feature codes. A unique
  top candidate is kept; a tie at the top (two paralogous genes with the same
  exonic annotation, say) leaves the molecule uncounted.

  Gene disambiguation: the kept alignment may still overlap several genes.
  Each gene gets the highest priority among the feature codes attributed to
  it, and again only a unique top gene survives. A sense coding exon thus
  wins over an antisense intron of another gene.

  Channel determination: the gene's feature codes are split into exonic and
  intronic ones. Every molecule counts into "exonic_reads"/"intronic_reads";
  the first molecule seen for a (cell, UMI) pair additionally counts into
  "exonic_counts"/"intronic_counts". Exon/intron conflicts are resolved by the
  configured policy, and any hit on a main-contributing channel also counts
  into "counts".

  Uniqueness is tracked per UniqueSet. Bundles are routed to parallel workers
  by a deterministic function of the cell barcode (see package partition), so
  no two workers ever share a (cell, UMI) pair and each owns its own set.
*/
package quant
