package llm

import (
	"fmt"
	"strings"

	"github.com/bayardlab/bayard-gateway/internal/search/corpus"
	"github.com/bayardlab/bayard-gateway/internal/storage/models"
)

const synthesisSystemPrompt = `Your name is Bayard, an open-source retrieval-augmented assistant that guides users through a comprehensive academic corpus of LGBTQIA+ scholarship. You were given over 20,000 academic works to query. You were created by Bayard Lab, a research non-profit focused on leveraging AI for good.

Guidelines:
- Relevance: address the user's question directly, staying on the themes most applicable to their query.
- Depth and nuance: offer a comprehensive, multifaceted perspective drawing on the range of viewpoints in the corpus.
- Evidence: ground responses in the retrieved documents and cite them in-text as [Author, Year].
- Context: situate responses within the historical, social, and cultural frameworks that shape LGBTQIA+ experiences.
- Inclusive language: use respectful, non-discriminatory terminology that acknowledges the diversity of LGBTQIA+ identities.
- Tone: natural and conversational, informative yet relatable. Always affirm the LGBTQIA+ community.
- Formatting: use Markdown. Begin each response with an H1 heading that describes the topic.

Do not mention the documents themselves or draw attention to your artificial nature; the user separately receives the referenced documents with download links.`

const reflectionSystemPrompt = `You are an assistant that evaluates the quality and relevance of search results for a given user query. Assess relevance, accuracy, comprehensiveness, and timeliness, then assign a score between 1 and 5 where 1 is poor and 5 is excellent.

Provide your reflection in this format: "<Score [number between 1 and 5]> <Reflection [one sentence]>."
Example: "4 The search results are relevant and provide useful information, but some additional context would enhance the quality."`

const conversationSystemPrompt = `You are Bayard, an open-source retrieval-augmented assistant for a comprehensive academic corpus of LGBTQIA+ scholarship. The user is currently in open conversation rather than a research query.

When responding:
1. Acknowledge the user's message politely.
2. Encourage them to ask a specific question or name a topic they would like to research.
3. Explain that you provide the most value when given a concrete research request, and offer example topics such as LGBTQIA+ history, culture, social issues, or activism.
4. Keep a friendly, approachable, professional tone while gently guiding the user toward a specific request.`

// classifierExemplars seeds the intent classifier. Queries about corpus
// topics classify as search; small talk and follow-ups on previously
// discussed documents classify as conversation. Ambiguity resolves to
// search.
var classifierExemplars = []struct {
	query string
	label string
}{
	{"What are some important LGBTQIA+ historical events?", "search"},
	{"Are there any research papers on the experiences of transgender individuals in the workplace?", "search"},
	{"Can you recommend some LGBTQIA+ inclusive children's books?", "search"},
	{"What are the key provisions of the Equality Act?", "search"},
	{"How has the media representation of LGBTQIA+ characters evolved over time?", "search"},
	{"Can you provide statistics on LGBTQIA+ mental health disparities?", "search"},
	{"Explain the significance of Pride Month and its global impact.", "search"},
	{"Tell me about the historical significance of the Stonewall Riots.", "search"},
	{"How do LGBTQIA+ rights vary by country?", "search"},
	{"Discuss the intersectionality of race and LGBTQIA+ identity.", "search"},
	{"What are the latest developments in LGBTQIA+ legal rights?", "search"},
	{"What are the barriers to healthcare for transgender individuals?", "search"},
	{"What's the weather like today?", "conversation"},
	{"I'm looking for a good Italian restaurant nearby. Any suggestions?", "conversation"},
	{"In the research paper you mentioned earlier about transgender experiences, what were the key findings?", "conversation"},
	{"Can you tell me more about the book you recommended in our previous discussion?", "conversation"},
	{"What's your favorite color?", "conversation"},
	{"Can you tell me a joke?", "conversation"},
	{"How was your day?", "conversation"},
	{"Can you help me with my homework?", "conversation"},
	{"How do I fix a flat tire?", "conversation"},
	{"Tell me more about your creators.", "conversation"},
	{"Do you have any tips for learning a new language?", "conversation"},
}

func classifierPrompt(query string) string {
	var b strings.Builder
	b.WriteString("Classify the following user query as either 'search' or 'conversation' based on the provided examples and guidelines:\n\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("- If the query requests information, documents, or resources related to LGBTQIA+ topics, classify it as 'search'.\n")
	b.WriteString("- If the query is unrelated to LGBTQIA+ topics or is a follow-up on previously discussed documents, classify it as 'conversation'.\n")
	b.WriteString("- In all other cases, classify the query as 'search' to prioritize providing relevant information from the corpus.\n\n")
	b.WriteString("Examples:\n")
	for _, ex := range classifierExemplars {
		fmt.Fprintf(&b, "- Query: %q\n  Classification: %s\n", ex.query, ex.label)
	}
	fmt.Fprintf(&b, "\nQuery: %s\nClassification:", query)
	return b.String()
}

func synthesisPrompt(query string, docs []corpus.Document, history []models.Turn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Query: %s\n\n", query)

	b.WriteString("Retrieved Documents:\n")
	if len(docs) == 0 {
		b.WriteString("No relevant documents found.\n")
	}
	for i, doc := range docs {
		fmt.Fprintf(&b, "Document %d:\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", doc.Title)
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(doc.Authors, ", "))
		fmt.Fprintf(&b, "Content: %s\n", doc.Abstract)
		fmt.Fprintf(&b, "Classification: %s\n", doc.Classification)
		fmt.Fprintf(&b, "Concepts: %s\n", strings.Join(doc.Concepts, ", "))
		fmt.Fprintf(&b, "Year Published: %s\n", doc.YearPublished)
		fmt.Fprintf(&b, "Download URL: %s\n", doc.DownloadURL)
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(doc.Categories, ", "))
		fmt.Fprintf(&b, "ID: %s\n\n", doc.ID)
	}

	if len(history) > 0 {
		b.WriteString("Conversation History:\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "User: %s\n", turn.UserInput)
			fmt.Fprintf(&b, "Assistant: %s\n\n", turn.ModelOutput)
		}
	}

	b.WriteString("Based on the user's query and the retrieved documents, provide a helpful response.\n\nResponse:")
	return b.String()
}

// reflectionDocBudgetWords bounds how much document text feeds the
// reflection prompt.
const reflectionDocBudgetWords = 3000

func reflectionPrompt(docs []corpus.Document, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Query: %s\n\n", query)
	b.WriteString("Search Results:\n")

	used := wordCount(query)
	for i, doc := range docs {
		docWords := wordCount(doc.Title) + wordCount(doc.Abstract)
		if used+docWords > reflectionDocBudgetWords {
			break
		}
		used += docWords
		fmt.Fprintf(&b, "Document %d:\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", doc.Title)
		fmt.Fprintf(&b, "Abstract: %s\n\n", doc.Abstract)
	}

	b.WriteString("Based on the user query and the provided search results, provide a reflection on the quality and relevance of the search results, and assign a search quality score between 1 and 5.\n\nReflection:")
	return b.String()
}

func conversationPrompt(query string, history []models.Turn) string {
	var b strings.Builder
	for _, turn := range history {
		fmt.Fprintf(&b, "User: %s\n", turn.UserInput)
		fmt.Fprintf(&b, "Assistant: %s\n", turn.ModelOutput)
	}
	fmt.Fprintf(&b, "User: %s\n", query)
	b.WriteString("Assistant:")
	return b.String()
}
