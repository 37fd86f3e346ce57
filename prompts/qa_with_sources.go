package prompts

// DocumentPrompt renders one retrieved document for a combine step.
var DocumentPrompt = NewPromptTemplate("Content: {{.page_content}}\nSource: {{.source}}")

// QAWithSourcesPrompt answers from a set of rendered documents and asks the
// model to cite them on a trailing SOURCES line.
var QAWithSourcesPrompt = NewPromptTemplate(
	`Given the following extracted parts of a long document and a question, create a final answer with references ("SOURCES").
If you don't know the answer, just say that you don't know. Don't try to make up an answer.
ALWAYS return a "SOURCES" part in your answer.

QUESTION: {{.question}}
=========
{{.summaries}}
=========
FINAL ANSWER:`)

// MapQuestionPrompt extracts the passage of one document relevant to the question.
var MapQuestionPrompt = NewPromptTemplate(
	`Use the following portion of a long document to see if any of the text is relevant to answer the question.
Return any relevant text verbatim.
{{.context}}
Question: {{.question}}
Relevant text, if any:`)

// RefineInitialPrompt produces the first answer of a refine run.
var RefineInitialPrompt = NewPromptTemplate(
	`Context information is below.
---------------------
{{.context_str}}
---------------------
Given the context information and not prior knowledge, answer the question: {{.question}}
Cite the sources you used on a final line starting with "SOURCES: ".`)

// RefinePrompt improves an existing answer with one more document.
var RefinePrompt = NewPromptTemplate(
	`The original question is as follows: {{.question}}
We have provided an existing answer, including sources: {{.existing_answer}}
We have the opportunity to refine the existing answer (only if needed) with some more context below.
------------
{{.context_str}}
------------
Given the new context, refine the original answer to better answer the question.
If you do update it, please update the sources as well. If the context isn't useful, return the original answer.
Keep the final line starting with "SOURCES: ".`)
