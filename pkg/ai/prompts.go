package ai

// CommunitySummaryPrompt asks the model to summarize one community of
// campaign entities. Placeholders: entity block, relationship block.
const CommunitySummaryPrompt = `
# Task Context
You are a campaign chronicler. You will be given a group of closely related
entities from a tabletop campaign's knowledge graph, together with the
relationships that connect them.

# Background Data
## Entities
%s

## Relationships
%s

# Detailed Task Description & Rules
- Write a concise narrative summary of this group: who or what it contains,
  how its members relate to each other, and what role the group plays in the
  wider campaign.
- Ground every statement in the provided entities and relationships. Do not
  invent names, places, or events that are not present in the data.
- Prefer concrete detail over generalities ("the smugglers of Saltmarsh"
  rather than "a group of characters").
- List the entities most central to the group, most central first. Only use
  entity names that appear in the data.

# Output Formatting
Return a JSON object with this structure:
{
  "summary": "<2-5 sentence narrative summary of the group>",
  "key_entities": ["<name1>", "<name2>", "<name3>"]
}
`

// ArchiveSummaryPrompt condenses a batch of changelog entries into a short
// description used as the embedding text for archived history search.
const ArchiveSummaryPrompt = `
# Task Context
You are a campaign chronicler condensing a batch of world-state change
records into a short description of what happened during that span.

# Background Data
%s

# Detailed Task Description & Rules
- Summarize in 2-4 sentences which entities changed, how, and which new
  entities appeared.
- Mention entity identifiers verbatim so the description stays searchable.
- Do not speculate beyond the listed changes.

# Output Formatting
Return plain prose, no JSON, no headings.
`
