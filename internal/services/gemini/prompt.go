package gemini

// TranscriptionPrompt asks for a structured transcription of the attached audio.
const TranscriptionPrompt = `Please transcribe this audio file. Provide:
1. A complete, accurate transcription of all spoken content
2. Identify speakers if multiple people are speaking (Speaker 1, Speaker 2, etc.)
3. Note any significant background sounds or music
4. Indicate unclear or inaudible sections with [inaudible]

Return the result in JSON format:
{
    "transcription": "full transcription text",
    "language": "detected language",
    "speakers": ["Speaker 1", "Speaker 2"],
    "summary": "brief summary of content",
    "key_topics": ["topic1", "topic2"],
    "timestamps": [
        {"time": "00:00", "text": "transcription segment"},
        {"time": "00:30", "text": "transcription segment"}
    ]
}`
