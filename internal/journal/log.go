package journal

// Log 是只追加的成交记录。Log 不做并发保护，由交易执行器独占写入。
type Log struct {
	items []Transaction
}

func NewLog() *Log { return &Log{} }

// Append 追加一笔成交。
func (l *Log) Append(tx Transaction) {
	l.items = append(l.items, tx)
}

func (l *Log) Len() int { return len(l.items) }

// All 返回按时间倒序（最新在前）的副本。
func (l *Log) All() []Transaction {
	out := make([]Transaction, len(l.items))
	for i, tx := range l.items {
		out[len(l.items)-1-i] = tx
	}
	return out
}

// Chronological 返回按追加顺序（最早在前）的副本。
func (l *Log) Chronological() []Transaction {
	return append([]Transaction(nil), l.items...)
}

// Truncate drops entries after n. Used to roll back an append that could not
// be committed.
func (l *Log) Truncate(n int) {
	if n < 0 || n >= len(l.items) {
		return
	}
	l.items = l.items[:n]
}
