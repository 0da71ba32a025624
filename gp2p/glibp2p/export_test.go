package glibp2p

// TrackedLimiters reports how many peers currently have an inbound rate limiter.
func (c *Connection) TrackedLimiters() int {
	c.limMu.Lock()
	defer c.limMu.Unlock()
	return len(c.limiters)
}
