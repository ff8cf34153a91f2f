package stream

// subEntry tracks how many callers hold a topic. The wire subscription is
// opened on the first registration and closed on the last.
type subEntry struct {
	topic Topic
	refs  int
}

// addSubsLocked registers topics and returns the ones that crossed
// 0 -> 1 and therefore need a wire subscribe. Caller holds subsMu.
func (c *Client) addSubsLocked(topics []Topic) []Topic {
	var fresh []Topic
	for _, t := range topics {
		key := t.Key()
		if e, ok := c.subs[key]; ok {
			e.refs++
			continue
		}
		c.subs[key] = &subEntry{topic: t, refs: 1}
		fresh = append(fresh, t)
	}
	return fresh
}

// dropSubsLocked releases topics and returns the ones whose last
// reference was just dropped. Caller holds subsMu.
func (c *Client) dropSubsLocked(topics []Topic) []Topic {
	var released []Topic
	for _, t := range topics {
		key := t.Key()
		e, ok := c.subs[key]
		if !ok {
			continue
		}
		e.refs--
		if e.refs <= 0 {
			delete(c.subs, key)
			released = append(released, t)
		}
	}
	return released
}

// subscribe registers topics and, when the wire is live, opens them on
// it. While disconnected the registration is kept and flushed by the next
// successful handshake, so callers may subscribe before Connect. The live
// check shares subsMu with resubscribe's snapshot, so a registration
// either rides the handshake flush or sends its own frame, never both.
func (c *Client) subscribe(topics []Topic) error {
	c.subsMu.Lock()
	fresh := c.addSubsLocked(topics)
	live := c.live
	c.subsMu.Unlock()
	if len(fresh) == 0 || !live {
		return nil
	}
	return c.sendFrame(frame{Type: frameSubscribe, Topics: fresh})
}

// unsubscribe releases topics and closes fully-released ones on the wire.
func (c *Client) unsubscribe(topics []Topic) error {
	c.subsMu.Lock()
	released := c.dropSubsLocked(topics)
	live := c.live
	c.subsMu.Unlock()
	if len(released) == 0 || !live {
		return nil
	}
	return c.sendFrame(frame{Type: frameUnsubscribe, Topics: released})
}

// resubscribe marks the wire live and replays every tracked topic after a
// handshake, covering both queued pre-connect subscriptions and
// reconnects.
func (c *Client) resubscribe() {
	c.subsMu.Lock()
	c.live = true
	topics := make([]Topic, 0, len(c.subs))
	for _, e := range c.subs {
		topics = append(topics, e.topic)
	}
	c.subsMu.Unlock()

	if len(topics) == 0 {
		return
	}
	if err := c.sendFrame(frame{Type: frameSubscribe, Topics: topics}); err != nil {
		c.log.WithField("error", err).Warn("resubscribe failed")
	}
}

// SubscribeTicker subscribes a ticker to the given feed classes. With no
// classes given the basic quote set is used.
func (c *Client) SubscribeTicker(tickerID int64, topicTypes ...int) error {
	if len(topicTypes) == 0 {
		topicTypes = BasicTickerTopics()
	}
	return c.subscribe(tickerTopics(tickerID, topicTypes))
}

// UnsubscribeTicker releases the given feed classes for a ticker. With no
// classes given the basic quote set is released.
func (c *Client) UnsubscribeTicker(tickerID int64, topicTypes ...int) error {
	if len(topicTypes) == 0 {
		topicTypes = BasicTickerTopics()
	}
	return c.unsubscribe(tickerTopics(tickerID, topicTypes))
}

// SubscribeOrders subscribes to order status pushes for one account.
func (c *Client) SubscribeOrders(accountID string) error {
	return c.subscribe([]Topic{{AccountID: accountID}})
}

// UnsubscribeOrders releases the order push feed for one account.
func (c *Client) UnsubscribeOrders(accountID string) error {
	return c.unsubscribe([]Topic{{AccountID: accountID}})
}

func tickerTopics(tickerID int64, topicTypes []int) []Topic {
	topics := make([]Topic, 0, len(topicTypes))
	for _, tt := range topicTypes {
		topics = append(topics, Topic{TickerID: tickerID, Type: tt})
	}
	return topics
}
