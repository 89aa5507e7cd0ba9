package piecetree

// cacheEntry records a previously-located node together with the
// accumulated offset and line number of its start, so repeated
// nearby lookups (typical of sequential typing) can skip the tree
// descent entirely.
type cacheEntry struct {
	node            *treeNode
	nodeStartOffset int
	// nodeStartLineNumber is the 1-based line number the node starts
	// on; 0 means "not populated for this entry" (nodeAt's cache
	// entries only carry an offset).
	nodeStartLineNumber int
}

// searchCache is a small bounded LRU-ish cache of recent node
// lookups, validated and invalidated on every mutation.
type searchCache struct {
	limit   int
	entries []cacheEntry
}

func newSearchCache(limit int) *searchCache {
	return &searchCache{limit: limit}
}

// get finds a cached node whose piece covers offset.
func (c *searchCache) get(offset int) *cacheEntry {
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := &c.entries[i]
		if e.nodeStartOffset <= offset && e.nodeStartOffset+e.node.piece.Length >= offset {
			return e
		}
	}
	return nil
}

// get2 finds a cached node whose piece covers lineNumber (1-based).
func (c *searchCache) get2(lineNumber int) *cacheEntry {
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := &c.entries[i]
		if e.nodeStartLineNumber > 0 && e.nodeStartLineNumber < lineNumber &&
			e.nodeStartLineNumber+e.node.piece.LineFeedCnt >= lineNumber {
			return e
		}
	}
	return nil
}

// set records a new cache entry, evicting the oldest one if the cache
// is at capacity.
func (c *searchCache) set(e cacheEntry) {
	if c.limit <= 0 {
		return
	}
	if len(c.entries) >= c.limit {
		c.entries = c.entries[1:]
	}
	c.entries = append(c.entries, e)
}

// validate drops any entry whose node has been detached from the
// tree (see treeNode.detached), or whose cached start offset is at or
// past offset (the edit offset, or the document length).
func (c *searchCache) validate(offset int) {
	if len(c.entries) == 0 {
		return
	}
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.node.detached || e.nodeStartOffset >= offset {
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
}
