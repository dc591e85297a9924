package wallet

import "time"

// Transaction is one entry of a wallet's recent history.
type Transaction struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	Direction          string    `json:"direction"`
	Status             string    `json:"status"`
	SettlementAmount   int64     `json:"settlement_amount"`
	SettlementFee      int64     `json:"settlement_fee"`
	Memo               string    `json:"memo,omitempty"`
	PaymentHash        string    `json:"payment_hash,omitempty"`
	OtherPartyUsername string    `json:"other_party_username,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Wallet is a wallet of the caller's default account.
type Wallet struct {
	ID           string        `json:"id"`
	Balance      int64         `json:"balance"`
	Currency     string        `json:"currency"`
	Transactions []Transaction `json:"transactions"`
}

// QuizQuestion is an earn question and its reward in sats.
type QuizQuestion struct {
	ID         string `json:"id"`
	EarnAmount int64  `json:"earn_amount"`
}

// QuizAnswer is the caller's progress on one question.
type QuizAnswer struct {
	Question  QuizQuestion `json:"question"`
	Completed bool         `json:"completed"`
}

// Main is the result of the main wallet query.
type Main struct {
	QuizQuestions []QuizQuestion `json:"quiz_questions"`
	MyQuiz        []QuizAnswer   `json:"my_quiz"`
	Wallets       []Wallet       `json:"wallets"`
}

// QuizProgress maps question ids to rewards. A nil map means the data was
// not part of the response.
type QuizProgress struct {
	All       map[string]int64 `json:"all"`
	Completed map[string]int64 `json:"completed"`
}

// Progress builds the quiz maps from the main query result.
func (m Main) Progress() QuizProgress {
	var p QuizProgress
	if m.QuizQuestions != nil {
		p.All = make(map[string]int64, len(m.QuizQuestions))
		for _, q := range m.QuizQuestions {
			p.All[q.ID] = q.EarnAmount
		}
	}
	if m.MyQuiz != nil {
		p.Completed = make(map[string]int64)
		for _, a := range m.MyQuiz {
			if a.Completed {
				p.Completed[a.Question.ID] = a.Question.EarnAmount
			}
		}
	}
	return p
}
