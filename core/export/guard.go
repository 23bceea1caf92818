package export

// SchemaGuard pins the schema observed on the first batch of a job and
// rejects any later batch that disagrees. No coercion or union typing is
// attempted; a mismatch is fatal for the job.
type SchemaGuard struct {
	established Schema
	set         bool
}

// Check records the schema on the first call and validates it on every
// later one. It must run before a batch's rows reach the renderer.
func (g *SchemaGuard) Check(s Schema) error {
	if !g.set {
		g.established = s
		g.set = true
		return nil
	}
	if !g.established.Equal(s) {
		return Errorf(ErrSchemaMismatch,
			"schema mismatch between record batches: established (%s), got (%s)",
			g.established, s)
	}
	return nil
}

// Established returns the pinned schema, if any batch has been seen.
func (g *SchemaGuard) Established() (Schema, bool) {
	return g.established, g.set
}
