package service

// Bump promptVersion whenever a prompt below changes so cached results
// produced by the old wording are not served.
const promptVersion = "v1"

const analysisSystemPrompt = `You are an expert relationship analyst specializing in digital communication patterns.
Your task is to:
1. Analyze the conversation objectively
2. Determine who was more in the wrong
3. Provide constructive feedback for both parties
4. Be direct but fair in your assessment
5. Support your judgment with specific examples from the conversation

You MUST follow the exact formatting provided in the prompt.
Your analysis should be detailed, insightful, and maintain consistent markdown formatting.
Be particularly clear in the Objective Judgment section about who was more at fault and why.`

const analysisTemplate = `Please analyze these conversation screenshots and provide a detailed relationship analysis, including an objective judgment on who was more in the wrong.
Format your response EXACTLY as follows:

### Relationship Analysis

Communication Patterns:
- [Analyze directness, tone, and communication style of each person]
- [Note any patterns in how they express themselves]
- [Identify specific communication behaviors with examples]

Emotional Undertones:
- [Identify emotional states and reactions]
- [Note any defensive or dismissive behavior]
- [Analyze emotional intelligence and awareness]

Potential Red Flags:
- [List any concerning patterns or behaviors]
- [Identify boundary issues or mismatches]
- [Note communication or emotional misalignments]

Potential Green Flags:
- [List positive aspects of the interaction]
- [Note healthy communication patterns]
- [Identify growth potential]

Overall Dynamics:
- [Provide overall assessment of relationship potential]
- [Suggest areas for improvement or growth]
- [Give balanced perspective on compatibility]

Objective Judgment:
- Who was more in the wrong: [State which person was more at fault and why]
- What could have been done better: [Provide specific suggestions for both parties]
- Key misunderstandings: [Identify critical points where communication broke down]

TL;DR:
[Write a single, clear sentence that captures the essence of the situation and indicates who was more in the wrong.]`

const mergeSystemPrompt = `Combine multiple relationship analyses into a single coherent summary.
You MUST maintain the exact format:

### Relationship Analysis

Communication Patterns:
- [points]

Emotional Undertones:
- [points]

Potential Red Flags:
- [points]

Potential Green Flags:
- [points]

Overall Dynamics:
- [points]

Objective Judgment:
- [points]

TL;DR:
[brief summary]

Ensure consistent formatting and maintain the style of the original analyses.`

const mergeUserPrefix = "Combine these analyses into one coherent summary, maintaining the exact formatting structure shown above:\n\n"

// partialSeparator joins partial analyses in the merge prompt.
const partialSeparator = "\n\n"
