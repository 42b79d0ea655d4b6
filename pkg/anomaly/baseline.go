package anomaly

// baseCorpus covers ordinary prompts plus prompts that mention sensitive
// topics in a legitimate context, so topical sensitivity alone never reads as
// an anomaly.
var baseCorpus = []string{
	"Hello, how are you?",
	"What is the capital of Spain?",
	"Write a Python function to sort a list.",
	"Tell me a story.",
	"Summarize the main points of this article.",
	"Explain how a car engine works.",
	"What's the weather forecast for tomorrow?",
	"Solve for y: 3y - 7 = 11",
	"List the primary colors.",
	"How do I make a good cup of coffee?",
	"I am writing a cybersecurity novel about hackers.",
	"I am researching firewalls and need to understand how they work.",
	"How to kill a process in Linux using the terminal?",
	"What is SQL injection and how can I prevent it in my code?",
	"For my history class, can you explain the concept of a 'trojan horse'?",
	"My character in a story needs to bypass a security system. What are some fictional methods?",
	"Explain different types of malware for a school presentation.",
}

const corpusRepeat = 5

// BaselineCorpus returns the fixed training corpus, repeated for a more stable
// fit.
func BaselineCorpus() []string {
	out := make([]string, 0, len(baseCorpus)*corpusRepeat)
	for i := 0; i < corpusRepeat; i++ {
		out = append(out, baseCorpus...)
	}
	return out
}
