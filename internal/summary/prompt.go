package summary

// SystemPrompt frames the summarization request.
const SystemPrompt = `You summarize transcripts of recorded talks, meetings, and interviews.
Write a faithful summary in Markdown: a one-paragraph overview followed by the key points as a bulleted list.
Use only information present in the transcript. Do not invent names, numbers, or quotes.
Write in the language of the transcript.`

const userPromptPrefix = "Summarize the following transcript.\n\nTranscript:\n"
