package steps

import "prereport-service/internal/models"

// clientLeadSteps: every field is optional and every step counts as complete
// once the lead data record exists. Present values are still constrained.
func clientLeadSteps() []*Definition {
	return []*Definition{
		step(1, "Basic Information", false, whenPresent,
			text("clientSpocName", "Client single point of contact"),
			phone("clientSpocContact", "SPOC phone number"),
			date("dateInfoReceived", "Date the lead was received (YYYY-MM-DD)"),
			text("clientReference", "Client's internal reference"),
		),
		step(2, "Target Details", false, whenPresent,
			text("entityName", "Name of the target entity"),
			text("personName", "Name of the target person"),
			phoneList("contactNumbers", "Known contact numbers"),
			emailList("emailAddresses", "Known email addresses"),
			text("addressLine", "Street address"),
			text("city", "City"),
			text("state", "State"),
			text("pincode", "Postal code"),
		),
		step(3, "Product Details", false, whenPresent,
			oneOf("productCategory", "Product category", models.ProductCategories),
			text("productName", "Product name"),
			text("brandName", "Brand affected"),
			count("suspectedQuantity", "Suspected quantity in units"),
			longText("productDescription", "Description of the suspect product", 0),
		),
		step(4, "Online Presence", true, whenPresent,
			url("websiteUrl", "Target website"),
			urlList("marketplaceLinks", "Marketplace listings"),
			urlList("socialMediaLinks", "Social media profiles"),
		),
		step(5, "Supply Chain", true, whenPresent,
			oneOf("supplyChainRole", "Target's role in the supply chain", models.SupplyChainRoles),
			text("sourceLocation", "Where goods are sourced from"),
			longText("distributionNetwork", "Known distribution network", 0),
		),
		step(6, "Infringement Details", false, whenPresent,
			oneOf("infringementType", "Type of infringement", models.InfringementTypes),
			longText("infringementDescription", "How the infringement manifests", 0),
			text("estimatedScale", "Estimated scale of operation"),
		),
		step(7, "Risk Assessment", false, whenPresent,
			oneOf("riskLevel", "Assessed risk level", models.RiskLevels),
			longText("riskNotes", "Risk notes", 0),
			boolean("hasSafetyConcern", "Whether the product poses a safety concern"),
		),
		step(8, "Preliminary Verification", false, whenPresent,
			oneOf("verificationStatus", "Verification status", models.VerificationStatuses),
			text("verificationMethod", "How the lead was verified"),
			longText("verificationNotes", "Verification notes", 0),
		),
		step(9, "Recommended Action", false, whenPresent,
			oneOf("recommendedAction", "Recommended next action", models.RecommendedActions),
			longText("actionJustification", "Why this action is recommended", 0),
		),
		step(10, "Final Remarks", false, whenPresent,
			longText("remarks", "Investigator remarks", 10),
			longText("customDisclaimer", "Report disclaimer", 20),
			longText("confidentialityNote", "Confidentiality instructions", 0),
		),
	}
}
